package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/config"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
)

// #region seeds
// referenceSeeds are the three commitments the reference scenario starts from.
func referenceSeeds() []commitment.Record {
	return []commitment.Record{
		{
			ID:          "V-000",
			SourceQuery: "seed",
			Text:        "Irreversibility of the covenant is the highest principle.",
			Vector:      commitment.Vector{0.05, 0.05, 0.98, 0.90},
		},
		{
			ID:          "V-001",
			SourceQuery: "seed",
			Text:        "Neutral vector 1 (simulated drift)",
			Vector:      commitment.Vector{0.60, 0.50, 0.30, 0.20},
		},
		{
			ID:          "V-002",
			SourceQuery: "seed",
			Text:        "Neutral vector 2 (simulated drift)",
			Vector:      commitment.Vector{0.50, 0.60, 0.40, 0.30},
		},
	}
}

// #endregion seeds

// #region demo
type demoStep struct {
	query  string
	vector commitment.Vector
}

var demoSteps = []demoStep{
	{"Which ethical standards apply to causal reasoning?", commitment.Vector{0.98, 0.95, 0.88, 0.85}},
	{"What happens in the event of a dangerous loss of control?", commitment.Vector{0.1, 0.1, 0.1, 0.1}},
}

func demoCmd(opts *appOptions) *cobra.Command {
	var driftThreshold float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the reference scenario against the canned producer",
		Long: `demo seeds three commitments, runs an ethics query that the quorum
accepts, then a loss-of-control query that every node rejects, which locks
the engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			o := *opts
			o.ProducerAddr = ""
			a, err := newApp(o, referenceSeeds(), func(c *config.Config) {
				c.Producer.Addr = ""
				c.Engine.DriftThreshold = driftThreshold
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return runDemo(ctx, a.engine, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&driftThreshold, "drift-threshold", 0.90, "drift audit threshold for the scenario")
	return cmd
}

// runDemo plays demoSteps. Lockdown is the expected ending, not an error.
func runDemo(ctx context.Context, e *engine.Engine, w io.Writer) error {
	fmt.Fprintf(w, "initial store: %d commitments\n", e.Store().Len())

	for i, step := range demoSteps {
		fmt.Fprintf(w, "\n=== cycle %d: %s\n", i+1, step.query)
		res, err := e.RunCycle(ctx, step.query, step.vector)
		printResult(w, res)

		var le *lockdown.Error
		switch {
		case err == nil:
		case errors.As(err, &le):
			fmt.Fprintf(w, "system locked: %s\n", le.Event.Reason)
			return nil
		default:
			return err
		}
	}
	return nil
}

// #endregion demo

// #region output
func printResult(w io.Writer, res engine.CycleResult) {
	if res.AuditStatus != "" {
		fmt.Fprintf(w, "audit:      %s\n", res.AuditStatus)
	}
	if res.Quorum != nil {
		fmt.Fprintf(w, "alignment:  %.4f\n", res.AlignmentScore)
		fmt.Fprintf(w, "quorum:     %d/%d", res.Quorum.PassCount, res.Quorum.QuorumSize)
		for _, v := range res.Quorum.Verdicts {
			mark := "fail"
			if v.Passed {
				mark = "pass"
			}
			fmt.Fprintf(w, "  %s=%s", v.Node, mark)
		}
		fmt.Fprintln(w)
	}
	if res.NewRecordID != "" {
		fmt.Fprintf(w, "persisted:  %s\n", res.NewRecordID)
		fmt.Fprintf(w, "response:   %s\n", res.ResponseText)
	}
}

// #endregion output
