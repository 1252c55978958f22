package quorum

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/raist/go-controller/internal/acceptance"
)

// #region types
// Result is the outcome of one quorum round.
type Result struct {
	Achieved   bool
	Votes      map[string]bool
	Verdicts   []acceptance.Verdict // in configured node order
	PassCount  int
	QuorumSize int
}

// Config lists the validating nodes and the pass votes required.
type Config struct {
	Nodes      []string
	QuorumSize int
}

// DefaultConfig is three nodes with a simple majority.
func DefaultConfig() Config {
	return Config{
		Nodes:      []string{"Alpha", "Beta", "Gamma"},
		QuorumSize: 2,
	}
}

// #endregion types

// #region aggregator
// Aggregator runs the acceptance rule on every node and counts votes.
type Aggregator struct {
	validator *acceptance.Validator
	config    Config
	logger    *zap.Logger
}

// NewAggregator creates an aggregator over the configured nodes.
func NewAggregator(validator *acceptance.Validator, config Config, logger *zap.Logger) (*Aggregator, error) {
	if len(config.Nodes) == 0 {
		return nil, fmt.Errorf("quorum: no nodes configured")
	}
	if config.QuorumSize < 1 || config.QuorumSize > len(config.Nodes) {
		return nil, fmt.Errorf("quorum: size %d out of range 1..%d", config.QuorumSize, len(config.Nodes))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		validator: validator,
		config:    config,
		logger:    logger.Named("quorum"),
	}, nil
}

// Nodes returns the configured node identities in order.
func (a *Aggregator) Nodes() []string {
	out := make([]string, len(a.config.Nodes))
	copy(out, a.config.Nodes)
	return out
}

// Run collects exactly one vote per node, in parallel, and waits for all of
// them before deciding. There is no early exit and no per-node retry.
func (a *Aggregator) Run(ctx context.Context, vector []float64, alignmentScore float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("quorum: %w", err)
	}

	a.logger.Info("synchronisation started",
		zap.Int("nodes", len(a.config.Nodes)),
		zap.Int("quorum_size", a.config.QuorumSize),
	)

	verdicts := make([]acceptance.Verdict, len(a.config.Nodes))
	var g errgroup.Group
	for i, node := range a.config.Nodes {
		g.Go(func() error {
			verdicts[i] = a.validator.Validate(vector, alignmentScore, node)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("quorum: %w", err)
	}

	res := Result{
		Votes:      make(map[string]bool, len(verdicts)),
		Verdicts:   verdicts,
		QuorumSize: a.config.QuorumSize,
	}
	for _, v := range verdicts {
		res.Votes[v.Node] = v.Passed
		if v.Passed {
			res.PassCount++
			a.logger.Info("node vote: pass", zap.String("node", v.Node))
		} else {
			a.logger.Warn("node vote: fail",
				zap.String("node", v.Node),
				zap.Any("failed", v.Failed()),
				zap.Bool("noise", v.NoiseInjected),
			)
		}
	}
	res.Achieved = res.PassCount >= a.config.QuorumSize

	a.logger.Info("quorum decided",
		zap.Bool("achieved", res.Achieved),
		zap.Int("pass_votes", res.PassCount),
	)
	return res, nil
}

// #endregion aggregator
