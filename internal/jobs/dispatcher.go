package jobs

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Runner executes one provisioning attempt. Satisfied by
// services.Provisioner.
type Runner interface {
	Run(ctx context.Context, domainID uuid.UUID) error
}

// Dispatcher starts provisioning runs either inline or on background
// goroutines, and guarantees at most one concurrently active run per
// domain. Worker concurrency across domains is bounded by a semaphore.
type Dispatcher struct {
	runner  Runner
	async   bool
	workers chan struct{}

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(runner Runner, async bool, maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Dispatcher{
		runner:  runner,
		async:   async,
		workers: make(chan struct{}, maxWorkers),
		active:  make(map[uuid.UUID]struct{}),
	}
}

// Schedule runs provisioning for the domain. Returns false when a run is
// already active for it; the existing run will reach a terminal state and
// callers can poll the registry row. In inline mode the call blocks until
// the run finishes.
func (d *Dispatcher) Schedule(domainID uuid.UUID) bool {
	if !d.acquire(domainID) {
		return false
	}

	if !d.async {
		defer d.release(domainID)
		d.execute(domainID)
		return true
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(domainID)

		d.workers <- struct{}{}
		defer func() { <-d.workers }()

		d.execute(domainID)
	}()
	return true
}

// IsActive reports whether a run currently holds the domain's marker.
func (d *Dispatcher) IsActive(domainID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[domainID]
	return ok
}

// Wait blocks until all in-flight runs have finished. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) acquire(domainID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.active[domainID]; ok {
		return false
	}
	d.active[domainID] = struct{}{}
	return true
}

func (d *Dispatcher) release(domainID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, domainID)
}

func (d *Dispatcher) execute(domainID uuid.UUID) {
	// A panicking run must still release its marker; the deferred release
	// in the callers handles unwinding, this keeps the process alive.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: provisioning run panicked for domain %s: %v", domainID.String(), r)
		}
	}()

	if err := d.runner.Run(context.Background(), domainID); err != nil {
		log.Printf("ERROR: provisioning run failed for domain %s: %v", domainID.String(), err)
	}
}
