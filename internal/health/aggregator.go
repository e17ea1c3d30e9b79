// Package health polls each configured database for reachability and folds
// the results into one composite status.
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookmarksync/internal/domain"
)

// Checker answers whether a database accepts work. driver.Driver satisfies it.
type Checker interface {
	IsReachable(ctx context.Context, database string) bool
}

// Options configures polling
type Options struct {
	Interval time.Duration // between checks of one database; 0 means 10s
	Timeout  time.Duration // bound on one check; 0 means 2s
}

// DatabaseHealth is the last known state of one database
type DatabaseHealth struct {
	Status    domain.HealthStatus `json:"status"`
	CheckedAt time.Time           `json:"checked_at,omitempty"`
}

// Report is the composite status plus one entry per registered database
type Report struct {
	Status    domain.HealthStatus       `json:"status"`
	Databases map[string]DatabaseHealth `json:"databases"`
}

// Aggregator runs one polling loop per registered database
type Aggregator struct {
	checker Checker
	opts    Options
	log     *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type entry struct {
	health DatabaseHealth
	cancel context.CancelFunc // nil until the loop runs
}

// New creates an aggregator; nothing is polled until Start
func New(checker Checker, opts Options, logger *zap.Logger) *Aggregator {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		checker: checker,
		opts:    opts,
		entries: make(map[string]*entry),
		log:     logger.Named("health"),
	}
}

// Register adds database. Once started, its loop begins right away.
func (a *Aggregator) Register(database string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[database]; ok {
		return
	}
	e := &entry{health: DatabaseHealth{Status: domain.HealthUnknown}}
	a.entries[database] = e
	if a.ctx != nil {
		a.startPollingLoop(database, e)
	}
}

// Unregister stops polling database and forgets it
func (a *Aggregator) Unregister(database string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[database]
	if !ok {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(a.entries, database)
	a.log.Info("stopped health checks", zap.String("database", database))
}

// Status returns the last status of database, UNKNOWN if never checked or not registered
func (a *Aggregator) Status(database string) domain.HealthStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if e, ok := a.entries[database]; ok {
		return e.health.Status
	}
	return domain.HealthUnknown
}

// Names returns the registered databases, sorted
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report returns every database's status and their composite
func (a *Aggregator) Report() Report {
	a.mu.RLock()
	defer a.mu.RUnlock()

	r := Report{Databases: make(map[string]DatabaseHealth, len(a.entries))}
	statuses := make([]domain.HealthStatus, 0, len(a.entries))
	for name, e := range a.entries {
		r.Databases[name] = e.health
		statuses = append(statuses, e.health.Status)
	}
	r.Status = domain.Composite(statuses...)
	return r
}

// Start begins polling every registered database
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx != nil {
		return errors.New("health aggregator already started")
	}
	a.ctx, a.cancel = context.WithCancel(ctx)

	for name, e := range a.entries {
		a.startPollingLoop(name, e)
	}
	return nil
}

// Stop ends every polling loop and waits for them
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	a.wg.Wait()
}

// CheckNow runs one check of database outside its schedule
func (a *Aggregator) CheckNow(ctx context.Context, database string) domain.HealthStatus {
	a.mu.RLock()
	e, ok := a.entries[database]
	a.mu.RUnlock()
	if !ok {
		return domain.HealthUnknown
	}
	return a.check(ctx, database, e)
}

// startPollingLoop starts the goroutine checking database on schedule.
// Called with a.mu held.
func (a *Aggregator) startPollingLoop(database string, e *entry) {
	ctx, cancel := context.WithCancel(a.ctx)
	e.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		a.check(ctx, database, e)

		ticker := time.NewTicker(a.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.check(ctx, database, e)
			}
		}
	}()

	a.log.Info("started health checks", zap.String("database", database), zap.Duration("interval", a.opts.Interval))
}

// check asks the checker once and records the answer if e is still registered
func (a *Aggregator) check(ctx context.Context, database string, e *entry) domain.HealthStatus {
	checkCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	up := a.checker.IsReachable(checkCtx, database)
	cancel()

	if ctx.Err() != nil {
		return domain.HealthUnknown
	}

	status := domain.HealthDown
	if up {
		status = domain.HealthUp
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.entries[database] != e {
		return status
	}
	prev := e.health.Status
	e.health = DatabaseHealth{Status: status, CheckedAt: time.Now()}

	if prev != status {
		fields := []zap.Field{
			zap.String("database", database),
			zap.String("from", string(prev)),
			zap.String("to", string(status)),
		}
		if status == domain.HealthDown {
			a.log.Warn("database health changed", fields...)
		} else {
			a.log.Info("database health changed", fields...)
		}
	}
	return status
}
