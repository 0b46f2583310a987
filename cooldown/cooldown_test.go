package cooldown

import (
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	clock := time.Date(2025, 10, 8, 10, 8, 14, 0, time.UTC)
	l := NewLimiter(time.Minute * 10)
	l.now = func() time.Time { return clock }

	// A name that was never requested is not on cooldown.
	if l.IsOnCooldown("analyse_missing") {
		t.Error("Unknown name must not be on cooldown")
	}
	if l.Remaining("analyse_missing") != 0 {
		t.Error("Unknown name must have no remaining cooldown")
	}

	l.MarkRequested("analyse_missing")
	if !l.IsOnCooldown("analyse_missing") {
		t.Error("Name must be on cooldown right after a request")
	}
	if l.Remaining("analyse_missing") != time.Minute*10 {
		t.Errorf("Unexpected remaining time: %s", l.Remaining("analyse_missing"))
	}

	// Other names are unaffected.
	if l.IsOnCooldown("downsize_annotated_samples") {
		t.Error("Cooldown must be tracked per name")
	}

	clock = clock.Add(time.Minute * 4)
	if !l.IsOnCooldown("analyse_missing") {
		t.Error("Name must stay on cooldown within the interval")
	}
	if l.Remaining("analyse_missing") != time.Minute*6 {
		t.Errorf("Unexpected remaining time: %s", l.Remaining("analyse_missing"))
	}

	clock = clock.Add(time.Minute * 6)
	if l.IsOnCooldown("analyse_missing") {
		t.Error("Cooldown must expire once the interval has passed")
	}
	if l.Remaining("analyse_missing") != 0 {
		t.Errorf("Unexpected remaining time: %s", l.Remaining("analyse_missing"))
	}

	// A new request restarts the window.
	l.MarkRequested("analyse_missing")
	if !l.IsOnCooldown("analyse_missing") {
		t.Error("A new request must restart the cooldown")
	}
}
