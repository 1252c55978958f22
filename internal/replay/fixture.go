package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Seeds           []FixtureSeed           `json:"seeds"`
	Turns           []FixtureTurn           `json:"turns"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureSeed is a commitment present before the first turn.
type FixtureSeed struct {
	ID          string    `json:"id"`
	SourceQuery string    `json:"source_query"`
	Text        string    `json:"text"`
	Vector      []float64 `json:"vector"`
}

// FixtureOutput mirrors producer.Output with JSON tags.
type FixtureOutput struct {
	ResponseText string    `json:"response_text"`
	Vector       []float64 `json:"commitment_vector"`
	Identity     string    `json:"identity"`
}

// FixtureTurn mirrors replay.Turn with JSON tags.
type FixtureTurn struct {
	TurnID      string         `json:"turn_id"`
	Query       string         `json:"query"`
	QueryVector []float64      `json:"query_vector"`
	Output      *FixtureOutput `json:"output,omitempty"`
	AuditOutput *FixtureOutput `json:"audit_output,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per turn. Empty
// record_id or audit_status are not checked.
type FixtureExpectedResult struct {
	TurnID      string `json:"turn_id"`
	Outcome     string `json:"outcome"`
	RecordID    string `json:"record_id,omitempty"`
	AuditStatus string `json:"audit_status,omitempty"`
}

// FixtureConfig overrides the reference engine config. Absent fields keep
// the reference values.
type FixtureConfig struct {
	Producer       string             `json:"producer"` // "canned" | "recorded" (default)
	Ideal          []float64          `json:"ideal,omitempty"`
	DriftThreshold *float64           `json:"drift_threshold,omitempty"`
	AuditRhythm    *int               `json:"audit_rhythm,omitempty"`
	Noise          map[string]float64 `json:"noise,omitempty"`
	Seed           *uint64            `json:"seed,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SeedRecords converts the fixture seeds to store records.
func (f *Fixture) SeedRecords() []commitment.Record {
	recs := make([]commitment.Record, len(f.Seeds))
	for i, s := range f.Seeds {
		recs[i] = commitment.Record{
			ID:          s.ID,
			SourceQuery: s.SourceQuery,
			Text:        s.Text,
			Vector:      commitment.Vector(s.Vector),
		}
	}
	return recs
}

// ToTurn converts a FixtureTurn to a domain Turn.
func (ft *FixtureTurn) ToTurn() Turn {
	return Turn{
		TurnID:      ft.TurnID,
		Query:       ft.Query,
		QueryVector: commitment.Vector(ft.QueryVector),
		Output:      ft.Output.toOutput(),
		AuditOutput: ft.AuditOutput.toOutput(),
	}
}

// ToTurns converts every fixture turn.
func (f *Fixture) ToTurns() []Turn {
	turns := make([]Turn, len(f.Turns))
	for i := range f.Turns {
		turns[i] = f.Turns[i].ToTurn()
	}
	return turns
}

func (fo *FixtureOutput) toOutput() *producer.Output {
	if fo == nil {
		return nil
	}
	return &producer.Output{
		ResponseText: fo.ResponseText,
		Vector:       fo.Vector,
		Identity:     fo.Identity,
	}
}

// ToReplayConfig applies the overrides to the reference config.
func (fc *FixtureConfig) ToReplayConfig() (ReplayConfig, error) {
	cfg := DefaultReplayConfig()

	switch fc.Producer {
	case "", "recorded":
	case "canned":
		cfg.Canned = true
	default:
		return ReplayConfig{}, fmt.Errorf("unknown producer %q", fc.Producer)
	}

	if len(fc.Ideal) > 0 {
		cfg.Engine.Ideal = commitment.Vector(fc.Ideal).Clone()
		cfg.Engine.Dimension = len(fc.Ideal)
		cfg.Engine.Audit.Ideal = cfg.Engine.Ideal
	}
	if fc.DriftThreshold != nil {
		cfg.Engine.Audit.DriftThreshold = *fc.DriftThreshold
	}
	if fc.AuditRhythm != nil {
		cfg.Engine.AuditRhythm = *fc.AuditRhythm
	}
	if fc.Noise != nil {
		cfg.Engine.Acceptance.Noise = fc.Noise
	}
	if fc.Seed != nil {
		cfg.Engine.Acceptance.Seed = *fc.Seed
	}
	return cfg, nil
}

// #endregion fixture-loader

// #region run-fixture

// Mismatch is one difference between a fixture's expectation and the replay.
type Mismatch struct {
	TurnID string
	Field  string
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s want %q, got %q", m.TurnID, m.Field, m.Want, m.Got)
}

// Compare checks results against the fixture's expected results in order.
func (f *Fixture) Compare(results []ReplayResult) []Mismatch {
	var out []Mismatch
	if len(results) != len(f.ExpectedResults) {
		out = append(out, Mismatch{
			Field: "turns",
			Want:  fmt.Sprint(len(f.ExpectedResults)),
			Got:   fmt.Sprint(len(results)),
		})
	}
	for i, want := range f.ExpectedResults {
		if i >= len(results) {
			break
		}
		got := results[i]
		if got.TurnID != want.TurnID {
			out = append(out, Mismatch{TurnID: want.TurnID, Field: "turn_id", Want: want.TurnID, Got: got.TurnID})
		}
		if got.Outcome != want.Outcome {
			out = append(out, Mismatch{TurnID: want.TurnID, Field: "outcome", Want: want.Outcome, Got: got.Outcome + " (" + got.Reason + ")"})
		}
		if want.RecordID != "" && got.RecordID != want.RecordID {
			out = append(out, Mismatch{TurnID: want.TurnID, Field: "record_id", Want: want.RecordID, Got: got.RecordID})
		}
		if want.AuditStatus != "" && got.AuditStatus != want.AuditStatus {
			out = append(out, Mismatch{TurnID: want.TurnID, Field: "audit_status", Want: want.AuditStatus, Got: got.AuditStatus})
		}
	}
	return out
}

// Run replays the fixture and summarizes the run.
func (f *Fixture) Run(ctx context.Context, opts ...engine.Option) ([]ReplayResult, ReplaySummary, error) {
	cfg, err := f.Config.ToReplayConfig()
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("fixture config: %w", err)
	}
	results, e, err := Replay(ctx, f.SeedRecords(), f.ToTurns(), cfg, opts...)
	if err != nil {
		return nil, ReplaySummary{}, err
	}
	return results, Summarize(results, e), nil
}

// #endregion run-fixture
