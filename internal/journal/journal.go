package journal

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	cycle_id    TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	last_phase  TEXT NOT NULL,
	alignment   REAL,
	achieved    INTEGER,
	pass_count  INTEGER,
	outcome     TEXT NOT NULL,
	record_id   TEXT,
	error       TEXT,
	started_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id       TEXT NOT NULL,
	node           TEXT NOT NULL,
	pass           INTEGER NOT NULL,
	criteria_json  TEXT NOT NULL,
	noise_injected INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (cycle_id) REFERENCES cycles(cycle_id)
);

CREATE TABLE IF NOT EXISTS commitments (
	record_id     TEXT PRIMARY KEY,
	cycle_id      TEXT,
	via           TEXT NOT NULL,
	source_query  TEXT NOT NULL,
	text          TEXT NOT NULL,
	vector        BLOB NOT NULL,
	identity      TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audits (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id      TEXT,
	status        TEXT NOT NULL,
	drift         REAL NOT NULL,
	samples       INTEGER NOT NULL,
	correction_id TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lockdown (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	cycle_id   TEXT,
	reason     TEXT NOT NULL,
	at         TEXT NOT NULL
);
`

// #endregion schema

// #region journal-struct
// Journal is a SQLite provenance log of engine activity. It implements
// engine.Observer; write failures are logged and never reach the cycle.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ engine.Observer = (*Journal)(nil)

// #endregion journal-struct

// #region constructor
// Open opens a SQLite database and runs migrations.
func Open(dbPath string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		db:     db,
		logger: logger.Named("journal"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// OpenExisting opens a journal that must already exist on disk. Read-only
// tools use it so a mistyped path fails instead of creating an empty journal.
func OpenExisting(dbPath string, logger *zap.Logger) (*Journal, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open db: %s is a directory", dbPath)
	}
	return Open(dbPath, logger)
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying *sql.DB.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// #endregion constructor

// #region observer
// CycleStarted inserts the cycle row with outcome running.
func (j *Journal) CycleStarted(cycleID, query string) {
	_, err := j.db.Exec(
		`INSERT INTO cycles (cycle_id, query, last_phase, outcome, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cycleID, query, string(engine.PhaseIdle), string(OutcomeRunning), j.stamp(),
	)
	j.check("insert cycle", cycleID, err)
}

// PhaseEntered records the latest phase reached.
func (j *Journal) PhaseEntered(cycleID string, phase engine.Phase) {
	_, err := j.db.Exec(`UPDATE cycles SET last_phase = ? WHERE cycle_id = ?`, string(phase), cycleID)
	j.check("update phase", cycleID, err)
}

// Scored stores the alignment score on the cycle row.
func (j *Journal) Scored(cycleID string, alignment float64) {
	_, err := j.db.Exec(`UPDATE cycles SET alignment = ? WHERE cycle_id = ?`, alignment, cycleID)
	j.check("update alignment", cycleID, err)
}

// QuorumDecided writes one vote row per node in a single transaction.
func (j *Journal) QuorumDecided(cycleID string, res quorum.Result) {
	j.check("log votes", cycleID, j.logVotes(cycleID, res))
}

// Persisted logs an appended record and, for quorum writes, closes the cycle.
func (j *Journal) Persisted(cycleID string, rec commitment.Record, via engine.Via) {
	j.check("log commitment", cycleID, j.logCommitment(cycleID, rec, via))
}

// Audited logs one drift audit.
func (j *Journal) Audited(cycleID string, rep audit.Report) {
	_, err := j.db.Exec(
		`INSERT INTO audits (cycle_id, status, drift, samples, correction_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(cycleID), string(rep.Status), rep.Drift, rep.Samples, nullIfEmpty(rep.CorrectionID), j.stamp(),
	)
	j.check("log audit", cycleID, err)
}

// LockedDown writes the single lockdown row and marks the cycle locked.
func (j *Journal) LockedDown(cycleID string, ev lockdown.Event) {
	tx, err := j.db.Begin()
	if err != nil {
		j.check("begin tx", cycleID, err)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO lockdown (id, cycle_id, reason, at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		nullIfEmpty(cycleID), ev.Reason, ev.At.UTC().Format(time.RFC3339Nano),
	); err != nil {
		j.check("log lockdown", cycleID, err)
		return
	}
	if _, err := tx.Exec(`UPDATE cycles SET outcome = ? WHERE cycle_id = ?`, string(OutcomeLocked), cycleID); err != nil {
		j.check("update outcome", cycleID, err)
		return
	}
	j.check("commit", cycleID, tx.Commit())
}

// CycleFailed closes a cycle that ended in an error.
func (j *Journal) CycleFailed(cycleID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := j.db.Exec(
		`UPDATE cycles SET outcome = ?, error = ? WHERE cycle_id = ?`,
		string(OutcomeFailed), nullIfEmpty(msg), cycleID,
	)
	j.check("update outcome", cycleID, err)
}

// #endregion observer

// #region writes
func (j *Journal) logVotes(cycleID string, res quorum.Result) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := j.stamp()
	for _, v := range res.Verdicts {
		criteria := make(map[string]bool, len(v.Criteria))
		for _, c := range v.Criteria {
			criteria[string(c.Name)] = c.Pass
		}
		criteriaJSON, err := json.Marshal(criteria)
		if err != nil {
			return fmt.Errorf("marshal criteria: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO votes (cycle_id, node, pass, criteria_json, noise_injected, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cycleID, v.Node, v.Passed, string(criteriaJSON), v.NoiseInjected, now,
		); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE cycles SET achieved = ?, pass_count = ? WHERE cycle_id = ?`,
		res.Achieved, res.PassCount, cycleID,
	); err != nil {
		return fmt.Errorf("update cycle: %w", err)
	}
	return tx.Commit()
}

func (j *Journal) logCommitment(cycleID string, rec commitment.Record, via engine.Via) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = j.now()
	}
	if _, err := tx.Exec(
		`INSERT INTO commitments (record_id, cycle_id, via, source_query, text, vector, identity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullIfEmpty(cycleID), string(via), rec.SourceQuery, rec.Text,
		encodeVector(rec.Vector), nullIfEmpty(rec.ProducerIdentity), createdAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}

	if via == engine.ViaQuorum {
		if _, err := tx.Exec(
			`UPDATE cycles SET outcome = ?, record_id = ? WHERE cycle_id = ?`,
			string(OutcomePersisted), rec.ID, cycleID,
		); err != nil {
			return fmt.Errorf("update cycle: %w", err)
		}
	}
	return tx.Commit()
}

func (j *Journal) check(op, cycleID string, err error) {
	if err != nil {
		j.logger.Error("journal write failed", zap.String("op", op), zap.String("cycle", cycleID), zap.Error(err))
	}
}

func (j *Journal) stamp() string {
	return j.now().Format(time.RFC3339Nano)
}

// #endregion writes

// #region reads
// Cycles returns the most recent cycles, newest first. limit <= 0 returns all.
func (j *Journal) Cycles(limit int) ([]CycleRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT cycle_id, query, last_phase, alignment, achieved, pass_count, outcome, record_id, error, started_at
		 FROM cycles ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var (
			r         CycleRow
			alignment sql.NullFloat64
			achieved  sql.NullBool
			passCount sql.NullInt64
			recordID  sql.NullString
			errMsg    sql.NullString
			outcome   string
			startedAt string
		)
		if err := rows.Scan(&r.CycleID, &r.Query, &r.LastPhase, &alignment, &achieved, &passCount, &outcome, &recordID, &errMsg, &startedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		r.Alignment = alignment.Float64
		r.Achieved = achieved.Bool
		r.PassCount = int(passCount.Int64)
		r.Outcome = Outcome(outcome)
		r.RecordID = recordID.String
		r.Error = errMsg.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Votes returns the votes of one cycle in node order as recorded.
func (j *Journal) Votes(cycleID string) ([]VoteRow, error) {
	rows, err := j.db.Query(
		`SELECT cycle_id, node, pass, criteria_json, noise_injected, created_at
		 FROM votes WHERE cycle_id = ? ORDER BY id ASC`, cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	var out []VoteRow
	for rows.Next() {
		var (
			r            VoteRow
			criteriaJSON string
			createdAt    string
		)
		if err := rows.Scan(&r.CycleID, &r.Node, &r.Pass, &criteriaJSON, &r.NoiseInjected, &createdAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &r.Criteria); err != nil {
			return nil, fmt.Errorf("unmarshal criteria: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commitments returns every journaled commitment in append order.
func (j *Journal) Commitments() ([]CommitmentRow, error) {
	rows, err := j.db.Query(
		`SELECT record_id, cycle_id, via, source_query, text, vector, identity, created_at
		 FROM commitments ORDER BY rowid ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []CommitmentRow
	for rows.Next() {
		var (
			r         CommitmentRow
			cycleID   sql.NullString
			identity  sql.NullString
			vec       []byte
			createdAt string
		)
		if err := rows.Scan(&r.ID, &cycleID, &r.Via, &r.SourceQuery, &r.Text, &vec, &identity, &createdAt); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		r.CycleID = cycleID.String
		r.ProducerIdentity = identity.String
		r.Vector = decodeVector(vec)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Audits returns every journaled audit in order.
func (j *Journal) Audits() ([]AuditRow, error) {
	rows, err := j.db.Query(
		`SELECT cycle_id, status, drift, samples, correction_id, created_at
		 FROM audits ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			r            AuditRow
			cycleID      sql.NullString
			correctionID sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&cycleID, &r.Status, &r.Drift, &r.Samples, &correctionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		r.CycleID = cycleID.String
		r.CorrectionID = correctionID.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Lockdown returns the lockdown event, if one was journaled.
func (j *Journal) Lockdown() (LockdownRow, bool, error) {
	var (
		r       LockdownRow
		cycleID sql.NullString
		at      string
	)
	err := j.db.QueryRow(`SELECT cycle_id, reason, at FROM lockdown WHERE id = 1`).Scan(&cycleID, &r.Reason, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return LockdownRow{}, false, nil
	}
	if err != nil {
		return LockdownRow{}, false, fmt.Errorf("get lockdown: %w", err)
	}
	r.CycleID = cycleID.String
	r.At, _ = time.Parse(time.RFC3339Nano, at)
	return r, true, nil
}

// #endregion reads

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion helpers
