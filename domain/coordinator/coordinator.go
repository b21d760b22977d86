// Package coordinator runs the single event loop that owns the work set
// builder, the difficulty manager and the multiverse. Rovers, workers and
// queries only ever reach them through messages into that loop.
package coordinator

import (
	"sync"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/datastructures/chainentrystore"
	"github.com/anchorchain/anchord/domain/consensus/model"
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/processes/difficultymanager"
	"github.com/anchorchain/anchord/domain/consensus/processes/multiverse"
	"github.com/anchorchain/anchord/domain/consensus/processes/worksetbuilder"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/anchorchain/anchord/domain/miningmanager/miner"
	"github.com/anchorchain/anchord/domain/rover"
	"github.com/anchorchain/anchord/infrastructure/db/database"
	"github.com/anchorchain/anchord/infrastructure/metrics"
	"github.com/pkg/errors"
)

const (
	recordsBufferSize             = 256
	defaultFreshnessCheckInterval = 5 * time.Second
)

// ErrStopped is returned by queries made after the coordinator stopped
var ErrStopped = errors.New("coordinator is stopped")

// Config holds everything a Coordinator is built from
type Config struct {
	Params       *dagconfig.Params
	MinerAddress string
	Workers      int

	// Database persists accepted entries. The multiverse lives in
	// memory only when it is nil.
	Database database.Database

	// Metrics defaults to a fresh set of collectors
	Metrics *metrics.Metrics

	// NewNonceSource overrides the workers' nonce sources
	NewNonceSource func(workerID int) miner.NonceSource

	// Now defaults to time.Now
	Now func() time.Time

	// FreshnessCheckInterval is how often source freshness is re-evaluated
	FreshnessCheckInterval time.Duration
}

// Coordinator serializes every mutation of the node's consensus state
type Coordinator struct {
	params                 *dagconfig.Params
	now                    func() time.Time
	freshnessCheckInterval time.Duration

	difficultyManager model.DifficultyManager
	builder           model.WorkSetBuilder
	multiverse        model.Multiverse
	store             model.ChainEntryStore
	pool              *miner.Pool
	metrics           *metrics.Metrics

	records chan *externalapi.SourceRecord
	queries chan func()

	roversLock sync.Mutex
	rovers     []rover.Rover

	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds the consensus state, restores persisted entries and spawns
// the worker pool. Workers stay idle until Start.
func New(cfg *Config) (*Coordinator, error) {
	err := cfg.Params.Validate()
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	freshnessCheckInterval := cfg.FreshnessCheckInterval
	if freshnessCheckInterval <= 0 {
		freshnessCheckInterval = defaultFreshnessCheckInterval
	}
	metricsCollectors := cfg.Metrics
	if metricsCollectors == nil {
		metricsCollectors = metrics.New()
	}

	difficultyManager := difficultymanager.New(cfg.Params)
	genesisState, err := difficultyManager.GenesisDifficultyState()
	if err != nil {
		return nil, err
	}
	genesis, err := externalapi.NewGenesisEntry(cfg.Params.GenesisHash, genesisState)
	if err != nil {
		return nil, err
	}
	forest := multiverse.New(genesis, cfg.Params.MaxForkDepth)

	var store model.ChainEntryStore
	if cfg.Database != nil {
		store = chainentrystore.New(cfg.Database)
		candidates, err := store.Candidates()
		if err != nil {
			return nil, errors.Wrap(err, "cannot load persisted chain entries")
		}
		if len(candidates) > 0 {
			forest.Restore(candidates)
		}
	}

	builder, err := worksetbuilder.New(cfg.Params, difficultyManager, cfg.MinerAddress, forest.Head())
	if err != nil {
		return nil, err
	}
	pool, err := miner.NewPool(&miner.Config{
		Workers:        cfg.Workers,
		Tunables:       miner.Tunables{MetricInterval: cfg.Params.MetricInterval},
		NewNonceSource: cfg.NewNonceSource,
	})
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		params:                 cfg.Params,
		now:                    now,
		freshnessCheckInterval: freshnessCheckInterval,
		difficultyManager:      difficultyManager,
		builder:                builder,
		multiverse:             forest,
		store:                  store,
		pool:                   pool,
		metrics:                metricsCollectors,
		records:                make(chan *externalapi.SourceRecord, recordsBufferSize),
		queries:                make(chan func()),
		quit:                   make(chan struct{}),
		done:                   make(chan struct{}),
	}
	c.recordMultiverse()
	log.Infof("Coordinator ready on %s with head %s", cfg.Params.Name, forest.Head())
	return c, nil
}

// Start runs the event loop and every rover added so far
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		spawn("coordinator.run", c.run)
	})
}

// Stop stops the event loop, the rovers and the workers
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.startOnce.Do(func() {
			close(c.done)
		})
		<-c.done

		c.roversLock.Lock()
		for _, r := range c.rovers {
			r.Stop()
		}
		c.roversLock.Unlock()
		c.pool.Stop()
		log.Infof("Coordinator stopped")
	})
}

// AddRover starts r and feeds its records into the event loop
func (c *Coordinator) AddRover(r rover.Rover) error {
	c.roversLock.Lock()
	defer c.roversLock.Unlock()

	err := r.Start()
	if err != nil {
		return errors.Wrapf(err, "cannot start the %s rover", r.SourceID())
	}
	c.rovers = append(c.rovers, r)
	spawn("coordinator.forwardRecords", func() {
		for record := range r.Records() {
			select {
			case c.records <- record:
			case <-c.quit:
				return
			}
		}
		log.Infof("The %s rover closed its stream", r.SourceID())
	})
	return nil
}

// SubmitRecord hands a record to the event loop
func (c *Coordinator) SubmitRecord(record *externalapi.SourceRecord) error {
	select {
	case <-c.quit:
		return ErrStopped
	default:
	}
	select {
	case c.records <- record:
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.freshnessCheckInterval)
	defer ticker.Stop()
	c.refresh()

	for {
		select {
		case record := <-c.records:
			c.logError(c.handleRecord(record))
		case candidate := <-c.pool.Results():
			c.logError(c.handleCandidate(candidate))
		case metric := <-c.pool.Metrics():
			c.logError(c.handleMetric(metric))
		case fault := <-c.pool.Faults():
			c.handleFault(fault)
		case query := <-c.queries:
			query()
		case <-ticker.C:
			c.refresh()
		case <-c.quit:
			return
		}
	}
}

func (c *Coordinator) unixNow() int64 {
	return c.now().Unix()
}
