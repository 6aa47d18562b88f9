package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/queue"
	"github.com/rafi-haque/Secure-Chat/internal/router"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("audit writer already started")

var _ router.PresenceObserver = (*Writer)(nil)

const schemaTable = `
CREATE TABLE IF NOT EXISTS presence_events (
	id               UUID PRIMARY KEY,
	kind             TEXT NOT NULL,
	identity         TEXT NOT NULL,
	conn_id          TEXT NOT NULL,
	previous_conn_id TEXT,
	occurred_at      TIMESTAMPTZ NOT NULL,
	instance_id      TEXT NOT NULL
)`

const schemaIndex = `
CREATE INDEX IF NOT EXISTS presence_events_identity_idx
	ON presence_events (identity, occurred_at DESC)`

const insertEvent = `
INSERT INTO presence_events (id, kind, identity, conn_id, previous_conn_id, occurred_at, instance_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds writer settings.
type WriterConfig struct {
	InstanceID    string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // queued transitions beyond this are dropped
}

// DefaultWriterConfig returns default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		InstanceID:    "relay",
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics holds writer counters.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

type eventRow struct {
	ID             uuid.UUID
	Kind           string
	Identity       string
	ConnID         string
	PreviousConnID *string
	OccurredAt     time.Time
	InstanceID     string
}

// Writer batches presence transitions into PostgreSQL.
type Writer struct {
	cfg     WriterConfig
	logger  *slog.Logger
	relay   *metrics.Relay
	db      DB
	input   *queue.Queue[router.PresenceEvent]
	started bool

	// Batching
	batch   []eventRow
	batchMu sync.Mutex
	metrics WriterMetrics

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	consumerDone chan struct{}
	flusherDone  chan struct{}
}

// NewWriter creates a new Writer. m may be nil.
func NewWriter(cfg WriterConfig, db DB, m *metrics.Relay, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = d.InstanceID
	}

	return &Writer{
		cfg:    cfg,
		logger: logger.With("component", "audit"),
		relay:  m,
		db:     db,
		input:  queue.NewBounded[router.PresenceEvent](64, cfg.BufferSize),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the presence_events table and index if missing.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, schemaTable); err != nil {
		return fmt.Errorf("create presence_events: %w", err)
	}
	if _, err := w.db.Exec(ctx, schemaIndex); err != nil {
		return fmt.Errorf("create presence_events index: %w", err)
	}
	return nil
}

// PresenceChanged queues ev. It never blocks; when the queue is full or the
// writer has stopped the event is dropped and counted.
func (w *Writer) PresenceChanged(ev router.PresenceEvent) {
	if w.input.Send(ev) {
		return
	}
	w.batchMu.Lock()
	w.metrics.Dropped++
	w.batchMu.Unlock()
	w.relay.AuditEvents("dropped", 1)
}

// Start begins consuming transitions and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.consumerDone = make(chan struct{})
	w.flusherDone = make(chan struct{})

	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("audit writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued transitions and writes a final batch using ctx.
// It returns ctx.Err() if the drain did not finish before ctx ended.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping audit writer")

	w.input.Close()
	if w.cancel == nil {
		return nil
	}

	var err error
	select {
	case <-w.consumerDone:
	case <-ctx.Done():
		err = ctx.Err()
		w.logger.Warn("audit writer stop timed out", "pending", w.input.Len())
	}

	w.cancel()
	<-w.flusherDone

	w.flush(ctx)
	w.logger.Info("audit writer stopped", "stats", w.Stats())
	return err
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop moves queued transitions into the batch until the queue closes.
func (w *Writer) consumeLoop() {
	defer close(w.consumerDone)

	for {
		ev, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleEvent(ev)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer close(w.flusherDone)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) handleEvent(ev router.PresenceEvent) {
	row := w.transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

func (w *Writer) transform(ev router.PresenceEvent) eventRow {
	row := eventRow{
		ID:         uuid.New(),
		Kind:       string(ev.Kind),
		Identity:   ev.Identity,
		ConnID:     ev.ConnID,
		OccurredAt: ev.At.UTC(),
		InstanceID: w.cfg.InstanceID,
	}
	if ev.PreviousConnID != "" {
		prev := ev.PreviousConnID
		row.PreviousConnID = &prev
	}
	return row
}

// flush writes the current batch. A failed batch is logged and discarded.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		w.relay.AuditEvents("failed", len(batch))
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()
	w.relay.AuditEvents("written", len(batch))

	w.logger.Debug("flushed presence events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent,
			r.ID, r.Kind, r.Identity, r.ConnID, r.PreviousConnID, r.OccurredAt, r.InstanceID)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
