// Package handler routes parsed signals and operator commands: the
// dispatcher opens orders for new signals, the router applies edits,
// deletes, and risk-free commands to prior ones. Both run their work on
// bounded pools so a burst never blocks message ingress.
package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pool sizes per the concurrency model: commands get four workers, order
// opening two, so slow trailing never queues new entries.
const (
	CommandWorkers = 4
	OrderWorkers   = 2

	jobQueueSize = 64
)

type job struct {
	id   string
	name string
	fn   func() error
}

// Pool is a bounded worker pool. Submitted jobs carry a correlation id for
// logs; a panic or error in one job never reaches another.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
	log  logrus.FieldLogger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool returns a pool of the given width.
func NewPool(workers int, logger logrus.FieldLogger) *Pool {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pool{
		jobs: make(chan job, jobQueueSize),
		log:  logger,
	}
	p.startOnce.Do(func() {
		for i := 0; i < workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
	return p
}

// Submit queues fn, blocking only when the queue is full. ctx cancellation
// drops the job instead of blocking shutdown.
func (p *Pool) Submit(ctx context.Context, name string, fn func() error) {
	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.log.WithFields(logrus.Fields{"job": name, "id": j.id}).
			Debug("dropping job, shutting down")
	}
}

// Drain stops intake and waits for in-flight jobs to finish.
func (p *Pool) Drain() {
	p.stopOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

// run executes one job. Errors stop at this boundary per the handler
// propagation rule.
func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"job": j.name, "id": j.id}).
				Errorf("job panicked: %v", r)
		}
	}()
	if err := j.fn(); err != nil {
		p.log.WithFields(logrus.Fields{"job": j.name, "id": j.id}).
			WithError(err).Error("job failed")
	}
}

// KeyedMutex serializes work per signal id while letting different signals
// proceed in parallel.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*lockEntry)}
}

// Lock acquires the lock for key and returns its unlock function. Entries
// are reference counted so the map does not grow with dead signals.
func (k *KeyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
