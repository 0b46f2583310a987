package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neuropathbasel-pub/CQmanager/batch"
)

func writeStatus(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal("Unexpected mkdir error", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal("Unexpected write error", err)
	}
}

func sampleDir(root, sample string) string {
	return filepath.Join(root, "illumina", BinSettingsString(50000, 20), sample)
}

func TestReadNoStatus(t *testing.T) {
	s := NewFileSource(t.TempDir())
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil {
		t.Fatal("Unexpected error", err)
	}
	if status != nil {
		t.Error("A missing sample directory must read as no status")
	}
}

func TestReadBaseStatus(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, sampleDir(root, "A"), "A_status.json", `{
		"analysis_completed_successfully": true,
		"array_type": "EPIC_v2",
		"sentrix_id": "A",
		"analysis_settings": {"downsized_to": "NO_DOWNSIZING"}
	}`)

	s := NewFileSource(root)
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil {
		t.Fatal("Unexpected error", err)
	}
	if status == nil {
		t.Fatal("Expected a status")
	}
	if !status.Success || status.ArrayType != batch.EPICv2 {
		t.Errorf("Unexpected status: %+v", status)
	}
	if len(status.Downsized) != 0 {
		t.Errorf("Unexpected downsized results: %v", status.Downsized)
	}
}

func TestReadStringBooleans(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, sampleDir(root, "A"), "A_status.json", `{
		"analysis_completed_successfully": "True",
		"array_type": "HM450K",
		"analysis_settings": {"downsized_to": "NO_DOWNSIZING"}
	}`)

	s := NewFileSource(root)
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil || status == nil {
		t.Fatal("Unexpected read result", status, err)
	}
	if !status.Success {
		t.Error(`"True" must parse as success`)
	}
}

func TestReadCollectsDownsizedResults(t *testing.T) {
	root := t.TempDir()
	dir := sampleDir(root, "A")
	writeStatus(t, dir, "base.json", `{
		"analysis_completed_successfully": true,
		"array_type": "EPIC_v2",
		"analysis_settings": {"downsized_to": "NO_DOWNSIZING"}
	}`)
	writeStatus(t, dir, "hm450k.json", `{
		"analysis_completed_successfully": true,
		"array_type": "EPIC_v2",
		"analysis_settings": {"downsized_to": "EPIC_v2_EPIC_v1_to_HM450K"}
	}`)
	writeStatus(t, dir, "msa48_failed.json", `{
		"analysis_completed_successfully": "False",
		"array_type": "EPIC_v2",
		"analysis_settings": {"downsized_to": "EPIC_v2_EPIC_v1_HM450_to_MSA48"}
	}`)

	s := NewFileSource(root)
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil || status == nil {
		t.Fatal("Unexpected read result", status, err)
	}
	if !status.Downsized[batch.ToHM450K] {
		t.Error("A completed downsized analysis must be recorded")
	}
	if status.Downsized[batch.ToMSA48] {
		t.Error("A failed downsized analysis must not be recorded")
	}
}

func TestReadDownsizedOnly(t *testing.T) {
	// A downsized result without the base record means the base
	// analysis status is unknown.
	root := t.TempDir()
	writeStatus(t, sampleDir(root, "A"), "hm450k.json", `{
		"analysis_completed_successfully": true,
		"array_type": "EPIC_v2",
		"analysis_settings": {"downsized_to": "EPIC_v2_EPIC_v1_to_HM450K"}
	}`)

	s := NewFileSource(root)
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil {
		t.Fatal("Unexpected error", err)
	}
	if status != nil {
		t.Error("Downsized results alone must not produce a status")
	}
}

func TestReadSkipsMalformedFiles(t *testing.T) {
	root := t.TempDir()
	dir := sampleDir(root, "A")
	writeStatus(t, dir, "broken.json", `{not json`)
	writeStatus(t, dir, "notes.txt", `not a status file`)
	writeStatus(t, dir, "base.json", `{
		"analysis_completed_successfully": true,
		"array_type": "MSA48",
		"analysis_settings": {"downsized_to": ""}
	}`)

	s := NewFileSource(root)
	status, err := s.Read("A", batch.Illumina, 50000, 20)
	if err != nil || status == nil {
		t.Fatal("Unexpected read result", status, err)
	}
	if status.ArrayType != batch.MSA48 {
		t.Errorf("Unexpected array type %s", status.ArrayType)
	}
}

func TestBinSettingsString(t *testing.T) {
	got := BinSettingsString(50000, 20)
	if got != "bin_size_50000_min_probes_per_bin_20" {
		t.Errorf("Unexpected bin settings string %q", got)
	}
}
