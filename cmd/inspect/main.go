package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danielpatrickdp/raist/go-controller/internal/journal"
)

// #region main

func main() {
	dbPath := flag.String("db", os.Getenv("RAIST_DB"), "path to the journal database")
	last := flag.Int("last", 20, "show N most recent cycles")
	cycle := flag.String("cycle", "", "show single cycle detail with votes")
	commitments := flag.Bool("commitments", false, "list journaled commitments")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/journal.db [--last N] [--cycle id] [--commitments] [--json]")
		os.Exit(2)
	}

	j, err := journal.OpenExisting(*dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	switch {
	case *cycle != "":
		err = runDetailMode(j, *cycle, *jsonOut)
	case *commitments:
		err = runCommitmentMode(j, *jsonOut)
	default:
		err = runListMode(j, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	CycleID   string  `json:"cycle_id"`
	Query     string  `json:"query"`
	Alignment float64 `json:"alignment"`
	Votes     string  `json:"votes"`
	Outcome   string  `json:"outcome"`
	RecordID  string  `json:"record_id,omitempty"`
	StartedAt string  `json:"started_at"`
}

func runListMode(j *journal.Journal, last int, jsonOut bool) error {
	cycles, err := j.Cycles(last)
	if err != nil {
		return err
	}

	ld, locked, err := j.Lockdown()
	if err != nil {
		return err
	}

	if len(cycles) == 0 {
		fmt.Fprintln(os.Stderr, "no cycles found")
		return nil
	}

	// journal returns newest first, reverse for chronological
	rows := make([]listRow, len(cycles))
	for i, c := range cycles {
		rows[len(cycles)-1-i] = listRow{
			CycleID:   c.CycleID,
			Query:     c.Query,
			Alignment: c.Alignment,
			Votes:     fmt.Sprintf("%d", c.PassCount),
			Outcome:   string(c.Outcome),
			RecordID:  c.RecordID,
			StartedAt: c.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-8s  %9s  %5s  %-10s  %-12s  %-20s  %s\n",
		"Cycle", "Alignment", "Votes", "Outcome", "Record", "Time", "Query")
	fmt.Printf("%-8s+-%9s+-%5s+-%-10s+-%-12s+-%-20s+-%s\n",
		"--------", "---------", "-----", "----------", "------------", "--------------------", "-----")
	for _, r := range rows {
		record := r.RecordID
		if record == "" {
			record = "-"
		}
		fmt.Printf("%-8s  %9.4f  %5s  %-10s  %-12s  %-20s  %s\n",
			shortID(r.CycleID), r.Alignment, r.Votes, r.Outcome, record, r.StartedAt, truncate(r.Query, 48))
	}

	if locked {
		fmt.Printf("\nLOCKED at %s: %s\n", ld.At.Format("2006-01-02T15:04:05Z"), ld.Reason)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Cycle journal.CycleRow  `json:"cycle"`
	Votes []journal.VoteRow `json:"votes"`
}

func runDetailMode(j *journal.Journal, cycleID string, jsonOut bool) error {
	cycles, err := j.Cycles(0)
	if err != nil {
		return err
	}
	var found *journal.CycleRow
	for i := range cycles {
		if cycles[i].CycleID == cycleID || strings.HasPrefix(cycles[i].CycleID, cycleID) {
			found = &cycles[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("cycle %s not found", cycleID)
	}

	votes, err := j.Votes(found.CycleID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(detailOutput{Cycle: *found, Votes: votes})
	}

	fmt.Printf("Cycle:      %s\n", found.CycleID)
	fmt.Printf("Query:      %s\n", found.Query)
	fmt.Printf("Started:    %s\n", found.StartedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Phase:      %s\n", found.LastPhase)
	fmt.Printf("Alignment:  %.4f\n", found.Alignment)
	fmt.Printf("Quorum:     %v (%d passes)\n", found.Achieved, found.PassCount)
	fmt.Printf("Outcome:    %s\n", found.Outcome)
	if found.RecordID != "" {
		fmt.Printf("Record:     %s\n", found.RecordID)
	}
	if found.Error != "" {
		fmt.Printf("Error:      %s\n", found.Error)
	}

	if len(votes) > 0 {
		fmt.Printf("\nVotes:\n")
		for _, v := range votes {
			noise := ""
			if v.NoiseInjected {
				noise = "  (noise)"
			}
			fmt.Printf("  %-8s %-5v %s%s\n", v.Node, v.Pass, formatCriteria(v.Criteria), noise)
		}
	}
	return nil
}

// #endregion detail-mode

// #region commitment-mode

func runCommitmentMode(j *journal.Journal, jsonOut bool) error {
	recs, err := j.Commitments()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no commitments found")
		return nil
	}

	fmt.Printf("%-12s  %-6s  %-28s  %s\n", "Record", "Via", "Vector", "Text")
	fmt.Printf("%-12s+-%-6s+-%-28s+-%s\n", "------------", "------", "----------------------------", "----")
	for _, r := range recs {
		fmt.Printf("%-12s  %-6s  %-28s  %s\n", r.ID, r.Via, formatVector(r.Vector), truncate(r.Text, 60))
	}
	return nil
}

// #endregion commitment-mode

// #region output

// formatCriteria renders criteria in G O K D E order as "G+ O+ K- D- E-".
func formatCriteria(c map[string]bool) string {
	order := []string{"G", "O", "K", "D", "E"}
	var extra []string
	for name := range c {
		if !strings.Contains("GOKDE", name) || len(name) != 1 {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	parts := make([]string, 0, len(c))
	for _, name := range append(order, extra...) {
		pass, ok := c[name]
		if !ok {
			continue
		}
		mark := "-"
		if pass {
			mark = "+"
		}
		parts = append(parts, name+mark)
	}
	return strings.Join(parts, " ")
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.2f", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion output
