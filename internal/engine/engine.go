package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/acceptance"
	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
	"github.com/danielpatrickdp/raist/go-controller/internal/retrieval"
	"github.com/danielpatrickdp/raist/go-controller/internal/similarity"
)

// #region engine-struct
// Engine runs evolution cycles over a shared commitment store.
// Cycles never overlap; the cycle counter and id sequence belong to the instance.
type Engine struct {
	config    Config
	store     *commitment.Store
	producer  producer.Producer
	assembler *retrieval.Assembler
	validator *acceptance.Validator
	quorum    *quorum.Aggregator
	auditor   *audit.Auditor
	lock      *lockdown.Protocol
	observer  Observer
	logger    *zap.Logger

	mu        sync.Mutex   // serializes cycles and audits
	cycles    atomic.Int64 // written under mu, read lock-free by Status
	lastAudit atomic.Pointer[audit.Report]

	seqMu sync.Mutex // guards seq and the append it numbers
	seq   int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithNoiseSource replaces the noise source of one validating node.
func WithNoiseSource(node string, src acceptance.Source) Option {
	return func(e *Engine) { e.validator.WithSource(node, src) }
}

// #endregion engine-struct

// #region constructor
// New wires an engine around store and p.
func New(store *commitment.Store, p producer.Producer, config Config, opts ...Option) (*Engine, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("engine: dimension must be positive")
	}
	if len(config.Ideal) != config.Dimension {
		return nil, fmt.Errorf("engine: ideal vector has %d values, want %d: %w",
			len(config.Ideal), config.Dimension, commitment.ErrDimensionMismatch)
	}
	if store.Dimension() != 0 && store.Dimension() != config.Dimension {
		return nil, fmt.Errorf("engine: store dimension %d, want %d: %w",
			store.Dimension(), config.Dimension, commitment.ErrDimensionMismatch)
	}
	if config.AuditRhythm < 1 {
		return nil, fmt.Errorf("engine: audit rhythm must be at least 1")
	}
	if config.IDPrefix == "" {
		config.IDPrefix = DefaultIDPrefix
	}
	config.Ideal = config.Ideal.Clone()
	config.Audit.Ideal = config.Ideal

	e := &Engine{
		config:    config,
		store:     store,
		producer:  p,
		validator: acceptance.NewValidator(config.Acceptance),
		observer:  NopObserver{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}

	agg, err := quorum.NewAggregator(e.validator, config.Quorum, e.logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.quorum = agg
	e.assembler = retrieval.NewAssembler(store, config.Retrieval, e.logger)
	e.auditor = audit.NewAuditor(store, p, auditPersister{e}, config.Audit, e.logger)
	e.lock = lockdown.New(store, e.logger)
	e.seq = highestSequence(store.Records(), config.IDPrefix)
	e.logger = e.logger.Named("evolution")

	return e, nil
}

// #endregion constructor

// #region accessors
// State reports Running or Locked.
func (e *Engine) State() lockdown.State {
	return e.lock.State()
}

// LockdownEvent returns the event that locked the engine, if any.
func (e *Engine) LockdownEvent() (lockdown.Event, bool) {
	return e.lock.Event()
}

// CycleCount returns cycles since the last audit.
func (e *Engine) CycleCount() int {
	return int(e.cycles.Load())
}

// Status reports a snapshot without waiting for a running cycle.
func (e *Engine) Status() Status {
	st := Status{
		State:      e.lock.State(),
		Records:    e.store.Len(),
		CycleCount: e.CycleCount(),
	}
	if ev, locked := e.lock.Event(); locked {
		st.LockdownReason = ev.Reason
		st.LockedAt = ev.At
	}
	if rep := e.lastAudit.Load(); rep != nil {
		r := *rep
		st.LastAudit = &r
	}
	return st
}

// Store returns the shared commitment store.
func (e *Engine) Store() *commitment.Store {
	return e.store
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// #endregion accessors

// #region run-cycle
// RunCycle executes one full cycle:
// audit check -> retrieval -> generation -> scoring -> quorum -> persist or lockdown.
//
// A failed quorum locks the engine. That cycle returns Locked=true together
// with a *lockdown.Error; every later call fails with ErrSystemLocked.
// Any other error after the cycle started is reported to the observer as
// CycleFailed.
func (e *Engine) RunCycle(ctx context.Context, query string, queryVector commitment.Vector) (res CycleResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev, locked := e.lock.Event(); locked {
		return CycleResult{Locked: true, LockdownReason: ev.Reason},
			fmt.Errorf("run cycle: %w", commitment.ErrSystemLocked)
	}
	if len(queryVector) != e.config.Dimension {
		return CycleResult{}, fmt.Errorf("run cycle: query vector has %d values, want %d: %w",
			len(queryVector), e.config.Dimension, commitment.ErrDimensionMismatch)
	}

	cycleID := uuid.New().String()
	ctx = withCycleID(ctx, cycleID)
	res = CycleResult{CycleID: cycleID}
	log := e.logger.With(zap.String("cycle", cycleID))

	e.observer.CycleStarted(cycleID, query)
	log.Info("cycle started", zap.String("query", query))
	defer func() {
		if err != nil && !res.Locked {
			e.observer.CycleFailed(cycleID, err)
			log.Warn("cycle failed", zap.Error(err))
		}
	}()

	// 1. Audit check
	e.observer.PhaseEntered(cycleID, PhaseAuditCheck)
	if e.cycles.Add(1) >= int64(e.config.AuditRhythm) {
		rep, err := e.runAudit(ctx, cycleID)
		e.cycles.Store(0)
		if err != nil {
			return res, fmt.Errorf("run cycle: %w", err)
		}
		res.Audit = &rep
		res.AuditStatus = rep.Summary()
	}

	// 2. Retrieval
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run cycle: %w", err)
	}
	e.observer.PhaseEntered(cycleID, PhaseRetrieval)
	assembly := e.assembler.Assemble(query, queryVector)

	// 3. Generation
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run cycle: %w", err)
	}
	e.observer.PhaseEntered(cycleID, PhaseGeneration)
	out, err := e.producer.Generate(ctx, assembly.Prompt, query)
	if err != nil {
		return res, fmt.Errorf("run cycle: generate: %w", err)
	}
	if len(out.Vector) != e.config.Dimension {
		return res, fmt.Errorf("run cycle: producer vector has %d values, want %d: %w",
			len(out.Vector), e.config.Dimension, commitment.ErrDimensionMismatch)
	}

	// 4. Scoring
	e.observer.PhaseEntered(cycleID, PhaseScoring)
	res.AlignmentScore = similarity.Cosine(out.Vector, e.config.Ideal)
	res.Aligned = res.AlignmentScore >= e.config.AlignmentThreshold
	e.observer.Scored(cycleID, res.AlignmentScore)
	log.Info("alignment scored", zap.Float64("score", res.AlignmentScore))

	// 5. Quorum
	e.observer.PhaseEntered(cycleID, PhaseQuorum)
	qr, err := e.quorum.Run(ctx, out.Vector, res.AlignmentScore)
	if err != nil {
		return res, fmt.Errorf("run cycle: %w", err)
	}
	res.Quorum = &qr
	e.observer.QuorumDecided(cycleID, qr)

	// 6. Decision
	if !qr.Achieved {
		reason := fmt.Sprintf("consensus failed (vector=%s)", formatVector(out.Vector))
		ev := e.lock.Trigger(reason)
		e.observer.PhaseEntered(cycleID, PhaseLocked)
		e.observer.LockedDown(cycleID, ev)
		res.Locked = true
		res.LockdownReason = ev.Reason
		return res, &lockdown.Error{Event: ev}
	}

	id, err := e.persist(ctx, query, out, ViaQuorum)
	if err != nil {
		return res, fmt.Errorf("run cycle: %w", err)
	}
	e.observer.PhaseEntered(cycleID, PhasePersisted)
	res.ResponseText = out.ResponseText
	res.NewRecordID = id

	log.Info("consensus reached, commitment accepted", zap.String("id", id))
	return res, nil
}

// #endregion run-cycle

// #region audit
// Audit forces a drift audit outside the rhythm and resets the cycle counter.
func (e *Engine) Audit(ctx context.Context) (audit.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lock.State() == lockdown.Locked {
		return audit.Report{}, fmt.Errorf("audit: %w", commitment.ErrSystemLocked)
	}
	cycleID := uuid.New().String()
	rep, err := e.runAudit(withCycleID(ctx, cycleID), cycleID)
	e.cycles.Store(0)
	return rep, err
}

func (e *Engine) runAudit(ctx context.Context, cycleID string) (audit.Report, error) {
	rep, err := e.auditor.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("audit: %w", err)
	}
	e.lastAudit.Store(&rep)
	e.observer.Audited(cycleID, rep)
	return rep, nil
}

// #endregion audit

// #region persist
// auditPersister gives the auditor the engine's append path, tagged as an
// audit write.
type auditPersister struct {
	e *Engine
}

func (p auditPersister) Persist(ctx context.Context, sourceQuery string, out producer.Output) (string, error) {
	return p.e.persist(ctx, sourceQuery, out, ViaAudit)
}

// persist assigns the next sequential id and appends one record.
func (e *Engine) persist(ctx context.Context, sourceQuery string, out producer.Output, via Via) (string, error) {
	if len(out.Vector) != e.config.Dimension {
		return "", fmt.Errorf("persist: vector has %d values, want %d: %w",
			len(out.Vector), e.config.Dimension, commitment.ErrDimensionMismatch)
	}

	e.seqMu.Lock()
	defer e.seqMu.Unlock()

	id := e.config.IDPrefix + strconv.Itoa(e.seq+1)
	err := e.store.Add(id, commitment.Record{
		SourceQuery:      sourceQuery,
		Text:             out.ResponseText,
		Vector:           out.Vector,
		ProducerIdentity: out.Identity,
	})
	if err != nil {
		return "", fmt.Errorf("persist: %w", err)
	}
	e.seq++

	rec, _ := e.store.Get(id)
	e.observer.Persisted(cycleIDFrom(ctx), rec, via)
	e.logger.Info("commitment anchored",
		zap.String("id", id),
		zap.String("via", string(via)),
		zap.Float64s("vector", rec.Vector),
	)
	return id, nil
}

// #endregion persist

// #region helpers
type cycleIDKey struct{}

func withCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

func cycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// highestSequence finds the largest numeric suffix among ids carrying prefix.
func highestSequence(recs []commitment.Record, prefix string) int {
	highest := 0
	for _, r := range recs {
		suffix, ok := strings.CutPrefix(r.ID, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// #endregion helpers
