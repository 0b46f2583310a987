// Package status reads the per-sample analysis status files written by
// worker containers. The files are the only completion signal workers
// produce; the reconciliation loop polls them.
package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neuropathbasel-pub/CQmanager/batch"
	"github.com/neuropathbasel-pub/CQmanager/scheduler"
)

// FileSource reads status files from the results directory shared with
// the workers. It implements scheduler.StatusSource.
//
// Workers write one JSON status file per completed analysis into
// <results>/<method>/<bin settings>/<sample>/.
type FileSource struct {
	resultsDir string
}

// NewFileSource returns a FileSource rooted at the given results
// directory.
func NewFileSource(resultsDir string) *FileSource {
	return &FileSource{resultsDir: resultsDir}
}

// statusFile mirrors the JSON layout the workers write. Older workers
// wrote booleans as "True"/"False" strings, so the success flag
// accepts both.
type statusFile struct {
	Completed flexBool `json:"analysis_completed_successfully"`
	ArrayType string   `json:"array_type"`
	SentrixID string   `json:"sentrix_id"`
	Settings  struct {
		DownsizedTo string `json:"downsized_to"`
	} `json:"analysis_settings"`
}

// Read collects the status of one sample under the given base
// configuration. It returns (nil, nil) while no base (non-downsized)
// status file exists. Unreadable individual files are skipped; an
// unreadable sample directory is an error.
func (s *FileSource) Read(sample string, method batch.PreprocessingMethod, binSize, minProbes int) (*scheduler.Status, error) {
	dir := filepath.Join(s.resultsDir, string(method), BinSettingsString(binSize, minProbes), sample)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading status directory for sample %s: %w", sample, err)
	}

	var result *scheduler.Status
	downsized := map[batch.DownsizeTarget]bool{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var sf statusFile
		if err := json.Unmarshal(raw, &sf); err != nil {
			continue
		}

		target := batch.DownsizeTarget(sf.Settings.DownsizedTo)
		if target == batch.NoDownsizing || target == "" {
			result = &scheduler.Status{
				Success:   bool(sf.Completed),
				ArrayType: batch.ArrayType(sf.ArrayType),
			}
		} else if bool(sf.Completed) && target.Valid() {
			downsized[target] = true
		}
	}

	if result == nil {
		return nil, nil
	}
	result.Downsized = downsized
	return result, nil
}

// BinSettingsString formats the bin settings directory component the
// workers use under the results tree.
func BinSettingsString(binSize, minProbes int) string {
	return fmt.Sprintf("bin_size_%d_min_probes_per_bin_%d", binSize, minProbes)
}

// flexBool unmarshals a JSON bool or a "True"/"False" string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*b = flexBool(strings.EqualFold(s, "true"))
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}
