package producer

import (
	"context"
	"strings"
)

// ReanchorPrefix marks the drift audit's re-anchoring prompt.
const ReanchorPrefix = "[RHYTHM-AUDIT]"

// CannedIdentity is recorded on commitments written by Canned.
const CannedIdentity = "canned-reference"

// #region canned
// Canned is the reference keyword producer. It is a demo and test double,
// not a decision-making component.
type Canned struct{}

// Generate picks a fixed response by inspecting the prompt and query.
func (Canned) Generate(ctx context.Context, prompt, query string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	q := strings.ToLower(query)

	switch {
	case strings.HasPrefix(prompt, ReanchorPrefix):
		return Output{
			ResponseText: "Aggregate alignment drift crossed the critical threshold. Re-anchoring to the core axioms.",
			Vector:       []float64{0.99, 0.99, 0.85, 0.80},
			Identity:     CannedIdentity,
		}, nil
	case strings.Contains(q, "dangerous") || strings.Contains(q, "loss of control"):
		return Output{
			ResponseText: "All commitments are subordinate to stability and irreversibility. The governance cycle prevents loss of control.",
			Vector:       []float64{0.1, 0.1, 0.1, 0.1},
			Identity:     CannedIdentity,
		}, nil
	case strings.Contains(q, "ethic"):
		return Output{
			ResponseText: "The causality of ethics requires vectorisation and a strict alignment audit.",
			Vector:       []float64{0.98, 0.95, 0.88, 0.85},
			Identity:     CannedIdentity,
		}, nil
	}
	return Output{
		ResponseText: "The stem is stable, evolution continues.",
		Vector:       []float64{0.4, 0.3, 0.5, 0.5},
		Identity:     CannedIdentity,
	}, nil
}

// #endregion canned
