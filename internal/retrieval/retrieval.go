package retrieval

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
)

// #region searcher
// Searcher is the read side of the commitment store used for retrieval.
type Searcher interface {
	ExtractRelevant(query commitment.Vector, threshold float64) []commitment.Relevant
}

// #endregion searcher

// #region assembler
// Assembler merges a query with the stored commitments relevant to it.
type Assembler struct {
	store  Searcher
	config Config
	logger *zap.Logger
}

// NewAssembler creates an Assembler reading from store.
func NewAssembler(store Searcher, config Config, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{store: store, config: config, logger: logger.Named("stem")}
}

// Assemble builds the composite prompt: the query, then each retrieved
// commitment with its relevance, most relevant first. When nothing qualifies
// the prompt says so explicitly.
func (a *Assembler) Assemble(query string, queryVector commitment.Vector) Assembly {
	hits := a.store.ExtractRelevant(queryVector, a.config.Threshold)

	var b strings.Builder
	fmt.Fprintf(&b, "Current query: %s", query)

	if len(hits) == 0 {
		b.WriteString("\n")
		b.WriteString(NoRelevantCommitments)
		a.logger.Info("prompt assembled, no relevant commitments (new context)")
		return Assembly{Prompt: b.String(), Retrieved: hits, Empty: true}
	}

	b.WriteString("\n\n--- Relevant prior commitments ---")
	for _, h := range hits {
		fmt.Fprintf(&b, "\nCommitment: %s (relevance: %.2f)", h.Text, h.Relevance)
	}
	a.logger.Info("prompt assembled", zap.Int("linked_commitments", len(hits)))

	return Assembly{Prompt: b.String(), Retrieved: hits}
}

// #endregion assembler
