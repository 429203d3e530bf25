package board

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "duoboard/board"

// PersistConfig sizes the pool that carries store writes off the event loop.
type PersistConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

func (c PersistConfig) withDefaults() PersistConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// PersistStats counts store writes handled by the pool.
type PersistStats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Spilled   uint64 `json:"spilled"`
}

type persistJob struct {
	op     string
	fields log.Fields
	run    func(ctx context.Context) error
}

// persister executes store writes fire-and-forget. Failures are logged and
// traced; nothing is retried.
type persister struct {
	cfg    PersistConfig
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan persistJob
	closed bool

	workerWG sync.WaitGroup
	spillWG  sync.WaitGroup

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	spilled   atomic.Uint64
}

func newPersister(cfg PersistConfig, logger *log.Logger) *persister {
	return &persister{cfg: cfg.withDefaults(), logger: logger}
}

func (p *persister) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jobs != nil {
		return
	}
	p.jobs = make(chan persistJob, p.cfg.Buffer)
	for i := 0; i < p.cfg.Workers; i++ {
		p.workerWG.Add(1)
		go p.worker(i, p.jobs)
	}
	p.logger.Infof("persister started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		p.cfg.Workers, p.cfg.Buffer, p.cfg.Timeout, p.cfg.HandoffTimeout)
}

// stop waits for queued and spilled writes to finish.
func (p *persister) stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.jobs != nil {
		close(p.jobs)
	}
	p.mu.Unlock()

	p.workerWG.Wait()
	p.spillWG.Wait()
}

func (p *persister) worker(id int, jobs <-chan persistJob) {
	defer p.workerWG.Done()
	for j := range jobs {
		p.exec(j, id)
	}
}

// submit hands the job to the pool without waiting for it to run. When the
// buffer stays full past the hand-off timeout a single worker pool waits for
// room, keeping writes in submission order; a multi-worker pool, which gives
// no order anyway, runs the job on its own goroutine.
func (p *persister) submit(j persistJob) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.jobs == nil {
		p.logger.WithFields(j.fields).WithField("op", j.op).Warn("persister not running; dropping store write")
		return
	}
	p.submitted.Add(1)

	select {
	case p.jobs <- j:
		return
	default:
	}
	if p.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(p.cfg.HandoffTimeout)
		defer timer.Stop()
		select {
		case p.jobs <- j:
			return
		case <-timer.C:
		}
	}

	if p.cfg.Workers == 1 {
		p.logger.WithField("op", j.op).Warn("persist buffer saturated; waiting for the worker")
		p.jobs <- j
		return
	}
	p.spilled.Add(1)
	p.logger.WithField("op", j.op).Warn("persist buffer saturated; writing on a detached goroutine")
	p.spillWG.Add(1)
	go func() {
		defer p.spillWG.Done()
		p.exec(j, -1)
	}()
}

func (p *persister) exec(j persistJob, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "store."+j.op)
	defer span.End()
	span.SetAttributes(attribute.String("store.op", j.op), attribute.Int("persist.worker", worker))
	for k, v := range j.fields {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		}
	}

	start := time.Now()
	err := j.run(ctx)
	p.completed.Add(1)
	if err != nil {
		p.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WithError(err).WithFields(j.fields).WithFields(log.Fields{
			"op":     j.op,
			"worker": worker,
		}).Error("store write failed")
		return
	}
	span.SetStatus(codes.Ok, "")
	p.logger.WithFields(j.fields).WithFields(log.Fields{
		"op":      j.op,
		"took_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("store write done")
}

func (p *persister) stats() PersistStats {
	return PersistStats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Spilled:   p.spilled.Load(),
	}
}
