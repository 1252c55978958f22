package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
)

// #region run
func runCmd(opts *appOptions) *cobra.Command {
	var (
		seed    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read queries from stdin and run one cycle per line",
		Long: `run reads one query per line. A line may carry its query vector after
a '|' separator, e.g. "ethics of control | 0.9,0.8,0.7,0.6"; without one the
ideal vector is used. ':audit' forces a drift audit, 'quit' exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var seeds []commitment.Record
			if seed {
				seeds = referenceSeeds()
			}
			a, err := newApp(*opts, seeds, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Commitment engine ready. Type a query (or 'quit' to exit):")
			return repl(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout(), timeout)
		},
	}
	cmd.Flags().StringVar(&opts.ProducerAddr, "producer-addr", envOr("PRODUCER_ADDR", ""), "gRPC producer address (empty = canned)")
	cmd.Flags().BoolVar(&seed, "seed", true, "start from the reference seed commitments")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-cycle timeout")
	return cmd
}

func repl(ctx context.Context, a *app, in io.Reader, out io.Writer, timeout time.Duration) error {
	scanner := bufio.NewScanner(in)
	ideal := a.engine.Config().Ideal

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case ":audit":
			rep, err := a.engine.Audit(ctx)
			if err != nil {
				fmt.Fprintf(out, "audit error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "audit: %s\n", rep.Summary())
			continue
		}

		query, vec, err := parseLine(line, ideal)
		if err != nil {
			fmt.Fprintf(out, "input error: %v\n", err)
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		res, err := a.engine.RunCycle(cctx, query, vec)
		cancel()
		printResult(out, res)
		if err != nil {
			if errors.Is(err, commitment.ErrSystemLocked) {
				fmt.Fprintf(out, "system locked: %s\n", res.LockdownReason)
				return err
			}
			a.logger.Warn("cycle failed", zap.Error(err))
			fmt.Fprintf(out, "cycle error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// parseLine splits "query | v1,v2,..." into its parts. Without a vector the
// fallback is returned.
func parseLine(line string, fallback commitment.Vector) (string, commitment.Vector, error) {
	query, rawVec, found := strings.Cut(line, "|")
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, fmt.Errorf("empty query")
	}
	if !found {
		return query, fallback.Clone(), nil
	}

	fields := strings.Split(rawVec, ",")
	vec := make(commitment.Vector, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("vector value %q: %w", f, err)
		}
		vec = append(vec, x)
	}
	if len(vec) != len(fallback) {
		return "", nil, fmt.Errorf("vector has %d values, want %d: %w", len(vec), len(fallback), commitment.ErrDimensionMismatch)
	}
	return query, vec, nil
}

// #endregion run
