// Package batch contains the data model for CNV analysis batch requests:
// validated unit tasks, the parameter key samples are grouped by, and the
// aggregator which merges tasks into dispatchable batches.
package batch

import "fmt"

// PreprocessingMethod is the method used to preprocess raw array data.
type PreprocessingMethod string

// Supported preprocessing methods.
const (
	Illumina PreprocessingMethod = "illumina"
	Swan     PreprocessingMethod = "swan"
	Noob     PreprocessingMethod = "noob"
)

// Valid reports whether m is a supported preprocessing method.
func (m PreprocessingMethod) Valid() bool {
	switch m {
	case Illumina, Swan, Noob:
		return true
	}
	return false
}

// DownsizeTarget selects the lower-resolution array type an analysis
// result is derived for. Downsizing is only possible after the
// non-downsized analysis of the same sample has succeeded.
type DownsizeTarget string

// Supported downsizing targets.
const (
	NoDownsizing DownsizeTarget = "NO_DOWNSIZING"
	ToHM450K     DownsizeTarget = "EPIC_v2_EPIC_v1_to_HM450K"
	ToMSA48      DownsizeTarget = "EPIC_v2_EPIC_v1_HM450_to_MSA48"
)

// Valid reports whether t is a supported downsizing target.
func (t DownsizeTarget) Valid() bool {
	switch t {
	case NoDownsizing, ToHM450K, ToMSA48:
		return true
	}
	return false
}

// ArrayType is the data-source type detected by the analysis worker
// and reported in the on-disk status file.
type ArrayType string

// Known array types.
const (
	HM450K ArrayType = "HM450K"
	EPICv1 ArrayType = "EPIC_v1"
	EPICv2 ArrayType = "EPIC_v2"
	MSA48  ArrayType = "MSA48"
)

// Valid reports whether a is a known array type.
func (a ArrayType) Valid() bool {
	switch a {
	case HM450K, EPICv1, EPICv2, MSA48:
		return true
	}
	return false
}

// Bin settings bounds. Tasks outside these bounds are rejected at
// construction.
const (
	MinBinSize     = 1000
	MaxBinSize     = 200000
	DefaultBinSize = 50000

	MinProbesPerBin     = 10
	MaxProbesPerBin     = 50
	DefaultProbesPerBin = 20
)

// Key identifies the processing parameters shared by all samples in one
// batch. Two tasks belong to the same batch iff their Keys are equal;
// sample identity is deliberately excluded.
type Key struct {
	BinSize         int                 `json:"bin_size"`
	MinProbesPerBin int                 `json:"min_probes_per_bin"`
	Method          PreprocessingMethod `json:"preprocessing_method"`
	Downsize        DownsizeTarget      `json:"downsize_to"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d-%d-%s", k.Method, k.BinSize, k.MinProbesPerBin, k.Downsize)
}

// UnitTask is one validated request to analyze a single sample under a
// specific configuration. Build it with NewUnitTask; a UnitTask is
// immutable once constructed.
type UnitTask struct {
	SampleID        string              `json:"sample_id"`
	Method          PreprocessingMethod `json:"preprocessing_method"`
	BinSize         int                 `json:"bin_size"`
	MinProbesPerBin int                 `json:"min_probes_per_bin"`
	Downsize        DownsizeTarget      `json:"downsize_to"`
}

// NewUnitTask validates the given fields and returns an immutable task.
// An empty downsize target defaults to NoDownsizing. The returned error
// names the offending field.
func NewUnitTask(sampleID string, method PreprocessingMethod, binSize, minProbes int, downsize DownsizeTarget) (UnitTask, error) {
	if downsize == "" {
		downsize = NoDownsizing
	}

	var t UnitTask
	if sampleID == "" {
		return t, fmt.Errorf("invalid sample_id: must not be empty")
	}
	if !method.Valid() {
		return t, fmt.Errorf("invalid preprocessing_method: %q", method)
	}
	if binSize < MinBinSize || binSize > MaxBinSize {
		return t, fmt.Errorf("invalid bin_size: %d is not in [%d, %d]", binSize, MinBinSize, MaxBinSize)
	}
	if minProbes < MinProbesPerBin || minProbes > MaxProbesPerBin {
		return t, fmt.Errorf("invalid min_probes_per_bin: %d is not in [%d, %d]", minProbes, MinProbesPerBin, MaxProbesPerBin)
	}
	if !downsize.Valid() {
		return t, fmt.Errorf("invalid downsize_to: %q", downsize)
	}

	return UnitTask{
		SampleID:        sampleID,
		Method:          method,
		BinSize:         binSize,
		MinProbesPerBin: minProbes,
		Downsize:        downsize,
	}, nil
}

// Key returns the batch key of the task.
func (t UnitTask) Key() Key {
	return Key{
		BinSize:         t.BinSize,
		MinProbesPerBin: t.MinProbesPerBin,
		Method:          t.Method,
		Downsize:        t.Downsize,
	}
}
