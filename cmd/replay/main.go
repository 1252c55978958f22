package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/raist/go-controller/internal/acceptance"
	"github.com/danielpatrickdp/raist/go-controller/internal/config"
	"github.com/danielpatrickdp/raist/go-controller/internal/journal"
	"github.com/danielpatrickdp/raist/go-controller/internal/replay"
	"github.com/danielpatrickdp/raist/go-controller/internal/similarity"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a journal database (verify mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON, or a directory of fixtures (fixture mode)")
	configPath := flag.String("config", os.Getenv("RAIST_CONFIG"), "config file used by verify mode")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/journal.db [--config raist.yaml]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json|dir")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runVerifyMode(*dbPath, *configPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	paths, err := fixturePaths(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixtures: %v\n", err)
		return 2
	}

	failed := 0
	for _, p := range paths {
		f, err := replay.LoadFixture(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}

		results, summary, err := f.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			return 2
		}

		fmt.Printf("== %s\n", filepath.Base(p))
		if f.Description != "" {
			fmt.Printf("   %s\n", f.Description)
		}
		printResults(results)
		fmt.Printf("   turns=%d persisted=%d locked=%d refused=%d errors=%d corrections=%d records=%d state=%s\n",
			summary.TotalTurns, summary.Persisted, summary.Locked, summary.Refused,
			summary.Errors, summary.Corrections, summary.FinalRecords, summary.FinalState)

		mismatches := f.Compare(results)
		for _, m := range mismatches {
			fmt.Printf("   MISMATCH %s\n", m)
		}
		if len(mismatches) > 0 {
			failed++
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d fixtures FAILED\n", failed, len(paths))
		return 1
	}
	fmt.Printf("\n%d fixtures OK\n", len(paths))
	return 0
}

func fixturePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no *.json fixtures in %s", path)
	}
	return paths, nil
}

func printResults(results []replay.ReplayResult) {
	for _, r := range results {
		line := fmt.Sprintf("   %-6s %-9s align=%.4f votes=%d", r.TurnID, r.Outcome, r.Alignment, r.PassCount)
		if r.RecordID != "" {
			line += " record=" + r.RecordID
		}
		if r.AuditStatus != "" {
			line += " audit=" + r.AuditStatus
		}
		fmt.Println(line)
	}
}

// #endregion fixture-mode

// #region verify-mode

// runVerifyMode recomputes what the journal can reproduce without the
// original queries: the alignment of each quorum-accepted commitment and the
// noise-free criteria (G, O) of each recorded vote.
func runVerifyMode(dbPath, configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	ec := cfg.ToEngine()
	ec.Acceptance.Noise = nil
	validator := acceptance.NewValidator(ec.Acceptance)

	j, err := journal.OpenExisting(dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer j.Close()

	cycles, err := j.Cycles(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	byID := make(map[string]journal.CycleRow, len(cycles))
	for _, c := range cycles {
		byID[c.CycleID] = c
	}

	recs, err := j.Commitments()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	checked, mismatches := 0, 0
	for _, rec := range recs {
		cycle, ok := byID[rec.CycleID]
		if rec.Via != "quorum" || !ok {
			continue
		}
		checked++

		score := similarity.Cosine(rec.Vector, ec.Ideal)
		if math.Abs(score-cycle.Alignment) > 1e-9 {
			mismatches++
			fmt.Printf("MISMATCH %s: alignment journaled %.6f, recomputed %.6f\n", rec.ID, cycle.Alignment, score)
		}

		votes, err := j.Votes(rec.CycleID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		for _, v := range votes {
			want := validator.Validate(rec.Vector, score, v.Node)
			for _, name := range []acceptance.CriterionName{acceptance.CriterionGood, acceptance.CriterionObligatory} {
				c, _ := want.Criterion(name)
				if got, ok := v.Criteria[string(name)]; ok && got != c.Pass {
					mismatches++
					fmt.Printf("MISMATCH %s node %s: %s journaled %v, recomputed %v\n", rec.ID, v.Node, name.Label(), got, c.Pass)
				}
			}
		}
	}

	fmt.Printf("verified %d accepted commitments, %d mismatches\n", checked, mismatches)
	if ld, locked, err := j.Lockdown(); err == nil && locked {
		fmt.Printf("journal ends in lockdown: %s\n", ld.Reason)
	}
	if mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion verify-mode
