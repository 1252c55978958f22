package retrieval

import "github.com/danielpatrickdp/raist/go-controller/internal/commitment"

// NoRelevantCommitments is the prompt line emitted when retrieval finds nothing.
const NoRelevantCommitments = "No relevant prior commitments found (new context)."

// #region config
// Config holds the retrieval threshold. It is distinct from the alignment and
// drift thresholds.
type Config struct {
	Threshold float64 // min cosine similarity for a stored commitment to be included
}

// DefaultConfig returns the reference retrieval threshold.
func DefaultConfig() Config {
	return Config{Threshold: 0.75}
}

// #endregion config

// #region assembly
// Assembly is the composite input handed to the producer.
type Assembly struct {
	Prompt    string
	Retrieved []commitment.Relevant // most relevant first
	Empty     bool                  // nothing passed the threshold
}

// #endregion assembly
