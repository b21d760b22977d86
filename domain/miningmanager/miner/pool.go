package miner

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const (
	inboxSize           = 16
	metricsBufferSize   = 64
	logHashRateInterval = 10 * time.Second
)

// NonceSource returns the next nonce to try. Each worker owns its own.
type NonceSource func() uint64

// Config holds the pool settings
type Config struct {
	Workers  int
	Tunables Tunables

	// NewNonceSource creates the nonce source of a worker. Workers
	// draw from a seeded math/rand source when it is nil.
	NewNonceSource func(workerID int) NonceSource
}

// Pool runs a fixed number of workers against the current work set.
// The coordinator is its only caller; workers talk back through the
// Results, Metrics and Faults channels.
type Pool struct {
	tunables       Tunables
	newNonceSource func(workerID int) NonceSource

	currentWorkSetID atomic.Uint64
	hashesTried      atomic.Uint64

	workersLock sync.Mutex
	workers     []*worker
	current     *externalapi.WorkSet

	results chan *externalapi.Candidate
	metrics chan *Metric
	faults  chan *WorkerFault

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool spawns cfg.Workers idle workers
func NewPool(cfg *Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, errors.Errorf("cannot spawn %d workers", cfg.Workers)
	}
	newNonceSource := cfg.NewNonceSource
	if newNonceSource == nil {
		newNonceSource = randomNonceSource
	}

	pool := &Pool{
		tunables:       cfg.Tunables,
		newNonceSource: newNonceSource,
		workers:        make([]*worker, cfg.Workers),
		results:        make(chan *externalapi.Candidate, cfg.Workers),
		metrics:        make(chan *Metric, metricsBufferSize),
		faults:         make(chan *WorkerFault, cfg.Workers),
		quit:           make(chan struct{}),
	}
	for id := range pool.workers {
		pool.spawnWorker(id)
	}
	pool.logHashRate()
	log.Infof("Spawned %d workers", cfg.Workers)
	return pool, nil
}

func randomNonceSource(workerID int) NonceSource {
	random := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	return random.Uint64
}

// spawnWorker must be called with workersLock held or before the pool is shared
func (p *Pool) spawnWorker(id int) *worker {
	w := &worker{
		id:        id,
		pool:      p,
		inbox:     make(chan message, inboxSize),
		done:      make(chan struct{}),
		nextNonce: p.newNonceSource(id),
		tunables:  p.tunables,
	}
	p.workers[id] = w
	p.wg.Add(1)
	spawn("miner.worker", w.run)
	return w
}

// Assign makes workSet the current work set. Workers searching an older
// one abandon it within one iteration.
func (p *Pool) Assign(workSet *externalapi.WorkSet) {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()

	p.current = workSet
	p.currentWorkSetID.Store(workSet.ID())
	p.broadcast(workMessage{workSet: workSet})
	log.Debugf("Assigned work set %d", workSet.ID())
}

// Cancel idles every worker until the next Assign
func (p *Pool) Cancel() {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()

	if p.current == nil {
		return
	}
	log.Debugf("Cancelled work set %d", p.current.ID())
	p.current = nil
	p.currentWorkSetID.Store(0)
}

// Update sends new tunables to every worker
func (p *Pool) Update(tunables Tunables) {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()

	p.tunables = tunables
	p.broadcast(updateMessage{tunables: tunables})
}

// Respawn replaces the worker that reported fault and hands it the
// current work set
func (p *Pool) Respawn(fault *WorkerFault) {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()

	select {
	case <-p.quit:
		return
	default:
	}
	if fault.WorkerID < 0 || fault.WorkerID >= len(p.workers) || p.workers[fault.WorkerID] != nil {
		return
	}
	w := p.spawnWorker(fault.WorkerID)
	log.Infof("Respawned worker %d", fault.WorkerID)
	if p.current != nil {
		p.send(w, workMessage{workSet: p.current})
	}
}

// Stop terminates every worker and waits for them to exit
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.workersLock.Lock()
		for _, w := range p.workers {
			if w == nil {
				continue
			}
			select {
			case w.inbox <- stopMessage{}:
			default:
			}
		}
		p.currentWorkSetID.Store(0)
		close(p.quit)
		p.workersLock.Unlock()

		p.wg.Wait()
		log.Infof("Worker pool stopped")
	})
}

// Results returns the channel candidates are emitted on
func (p *Pool) Results() <-chan *externalapi.Candidate {
	return p.results
}

// Metrics returns the channel metric reports are emitted on
func (p *Pool) Metrics() <-chan *Metric {
	return p.metrics
}

// Faults returns the channel worker faults are reported on
func (p *Pool) Faults() <-chan *WorkerFault {
	return p.faults
}

// CurrentWorkSetID returns the id of the current work set, or 0 when idle
func (p *Pool) CurrentWorkSetID() uint64 {
	return p.currentWorkSetID.Load()
}

// Workers returns the number of live workers
func (p *Pool) Workers() int {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()

	live := 0
	for _, w := range p.workers {
		if w != nil {
			live++
		}
	}
	return live
}

// broadcast must be called with workersLock held
func (p *Pool) broadcast(msg message) {
	for _, w := range p.workers {
		if w != nil {
			p.send(w, msg)
		}
	}
}

func (p *Pool) send(w *worker, msg message) {
	select {
	case w.inbox <- msg:
	case <-w.done:
	case <-p.quit:
	}
}

func (p *Pool) isCurrent(workSetID uint64) bool {
	return p.currentWorkSetID.Load() == workSetID
}

// emit hands a candidate to the coordinator unless its work set was
// superseded in the meantime
func (p *Pool) emit(candidate *externalapi.Candidate) {
	if !p.isCurrent(candidate.WorkSetID()) {
		log.Debugf("Dropping %s: work set %d was superseded", candidate, candidate.WorkSetID())
		return
	}
	select {
	case p.results <- candidate:
	case <-p.quit:
	}
}

// reportMetric never blocks a worker. Reports are dropped while the
// coordinator is behind.
func (p *Pool) reportMetric(metric *Metric) {
	select {
	case p.metrics <- metric:
	default:
	}
}

func (p *Pool) reportFault(fault *WorkerFault) {
	p.workersLock.Lock()
	p.workers[fault.WorkerID] = nil
	p.workersLock.Unlock()

	select {
	case p.faults <- fault:
	case <-p.quit:
	}
}

func (p *Pool) logHashRate() {
	spawn("miner.logHashRate", func() {
		ticker := time.NewTicker(logHashRateInterval)
		defer ticker.Stop()
		lastCheck := time.Now()
		for {
			select {
			case <-p.quit:
				return
			case currentTime := <-ticker.C:
				kiloHashesTried := float64(p.hashesTried.Swap(0)) / 1000.0
				hashRate := kiloHashesTried / currentTime.Sub(lastCheck).Seconds()
				log.Infof("Current hash rate is %.2f Khash/s", hashRate)
				lastCheck = currentTime
			}
		}
	})
}
