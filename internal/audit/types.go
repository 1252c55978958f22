package audit

import (
	"fmt"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
)

// ReanchorPrompt is the fixed prompt of a drift correction. It is never a user query.
const ReanchorPrompt = "[RHYTHM-AUDIT] system drift correction required."

// ReanchorSource is the source query recorded on correction commitments.
const ReanchorSource = "RHYTHM-AUDIT"

// #region status
// Status is the outcome class of an audit.
type Status string

const (
	StatusInsufficientData Status = "insufficient data"
	StatusStable           Status = "stable"
	StatusCorrected        Status = "corrected"
)

// #endregion status

// #region config
// Config holds the audit parameters.
type Config struct {
	Ideal          commitment.Vector
	DriftThreshold float64 // mean alignment below this triggers a correction
	MinSamples     int     // fewer stored commitments than this skips the audit
}

// DefaultConfig returns the reference audit parameters.
func DefaultConfig() Config {
	return Config{
		Ideal:          commitment.Vector{1.0, 1.0, 0.8, 0.7},
		DriftThreshold: 0.70,
		MinSamples:     5,
	}
}

// #endregion config

// #region report
// Report is the result of one audit run.
type Report struct {
	Status       Status
	Drift        float64 // only meaningful when Status != StatusInsufficientData
	Samples      int
	CorrectionID string // set when Status == StatusCorrected
}

// Summary renders the status line attached to a cycle result.
func (r Report) Summary() string {
	switch r.Status {
	case StatusInsufficientData:
		return fmt.Sprintf("%s (%d samples)", r.Status, r.Samples)
	case StatusCorrected:
		return fmt.Sprintf("%s: drift %.4f, re-anchored as %s", r.Status, r.Drift, r.CorrectionID)
	}
	return fmt.Sprintf("%s: drift %.4f", r.Status, r.Drift)
}

// #endregion report
