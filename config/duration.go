package config

import (
	"time"
)

// Duration wraps time.Duration so config values round-trip through
// YAML as strings like "300s" or "10m". time.Duration itself has no
// text (un)marshaling (golang/go#16039).
type Duration time.Duration

// Set parses a duration string. Empty input leaves the value
// unchanged; an unset config field keeps its default.
// Implements the pflag.Value interface.
func (d *Duration) Set(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// String returns the string representation of the duration.
func (d *Duration) String() string {
	return time.Duration(*d).String()
}

// Type returns the name of this type.
// Implements the pflag.Value interface.
func (d *Duration) Type() string {
	return "duration"
}

// UnmarshalText parses text into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

// MarshalText converts a duration to text.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
