package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region interfaces
// Reader is the part of the store the audit measures.
type Reader interface {
	Len() int
	AverageDriftAgainst(ideal commitment.Vector) float64
}

// Persister writes a commitment through the engine's single append path.
type Persister interface {
	Persist(ctx context.Context, sourceQuery string, out producer.Output) (string, error)
}

// #endregion interfaces

// #region auditor
// Auditor measures aggregate drift and re-anchors when it is too low.
// Correction writes go straight to the persister; they are not put to a quorum.
type Auditor struct {
	store     Reader
	producer  producer.Producer
	persister Persister
	config    Config
	logger    *zap.Logger
}

// NewAuditor wires an auditor.
func NewAuditor(store Reader, p producer.Producer, persister Persister, config Config, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{
		store:     store,
		producer:  p,
		persister: persister,
		config:    config,
		logger:    logger.Named("rhythm"),
	}
}

// Run performs one audit.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	samples := a.store.Len()
	if samples < a.config.MinSamples {
		a.logger.Info("audit skipped", zap.Int("samples", samples), zap.Int("min_samples", a.config.MinSamples))
		return Report{Status: StatusInsufficientData, Samples: samples}, nil
	}

	drift := a.store.AverageDriftAgainst(a.config.Ideal)
	a.logger.Info("audit started",
		zap.Float64("drift", drift),
		zap.Float64("threshold", a.config.DriftThreshold),
	)

	if drift >= a.config.DriftThreshold {
		a.logger.Info("drift within acceptable range")
		return Report{Status: StatusStable, Drift: drift, Samples: samples}, nil
	}

	a.logger.Warn("drift too high, re-anchoring")
	out, err := a.producer.Generate(ctx, ReanchorPrompt, ReanchorPrompt)
	if err != nil {
		return Report{}, fmt.Errorf("reanchor generate: %w", err)
	}
	id, err := a.persister.Persist(ctx, ReanchorSource, out)
	if err != nil {
		return Report{}, fmt.Errorf("reanchor persist: %w", err)
	}

	a.logger.Info("audit complete, re-anchored", zap.String("id", id))
	return Report{Status: StatusCorrected, Drift: drift, Samples: samples, CorrectionID: id}, nil
}

// #endregion auditor
