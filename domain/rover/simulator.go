package rover

import (
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const simulatorBufferSize = 16

// Simulator is a Rover producing a synthetic chain at a fixed interval.
// It stands in for real chains on simnet and devnet.
type Simulator struct {
	sourceID externalapi.SourceID
	interval time.Duration
	now      func() time.Time

	records  chan *externalapi.SourceRecord
	quit     chan struct{}
	start    sync.Once
	stop     sync.Once
	height   uint64
	prevHash string
}

// NewSimulator returns a Simulator for sourceID emitting a record every interval
func NewSimulator(sourceID externalapi.SourceID, interval time.Duration) (*Simulator, error) {
	if !sourceID.IsValid() {
		return nil, errors.Errorf("invalid source id %q", sourceID)
	}
	if interval <= 0 {
		return nil, errors.Errorf("simulator interval must be positive, got %s", interval)
	}
	return &Simulator{
		sourceID: sourceID,
		interval: interval,
		now:      time.Now,
		records:  make(chan *externalapi.SourceRecord, simulatorBufferSize),
		quit:     make(chan struct{}),
	}, nil
}

// SourceID returns the id of the simulated chain
func (s *Simulator) SourceID() externalapi.SourceID {
	return s.sourceID
}

// Records returns the record stream. It is closed on Stop.
func (s *Simulator) Records() <-chan *externalapi.SourceRecord {
	return s.records
}

// Start emits the first record immediately and one more every interval
func (s *Simulator) Start() error {
	s.start.Do(func() {
		spawn("rover.Simulator", s.run)
	})
	return nil
}

// Stop stops the simulation and closes the record stream
func (s *Simulator) Stop() {
	s.stop.Do(func() {
		close(s.quit)
	})
}

func (s *Simulator) run() {
	defer close(s.records)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		record, err := s.next()
		if err != nil {
			log.Errorf("Simulated %s chain stopped: %s", s.sourceID, err)
			return
		}
		select {
		case s.records <- record:
		case <-s.quit:
			return
		}
		select {
		case <-ticker.C:
		case <-s.quit:
			return
		}
	}
}

// next derives the next header of the simulated chain from its predecessor
func (s *Simulator) next() (*externalapi.SourceRecord, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	hasher.Write([]byte(s.sourceID))
	hasher.Write([]byte(s.prevHash))
	hasher.Write([]byte(strconv.FormatUint(s.height, 10)))
	hash := hex.EncodeToString(hasher.Sum(nil))

	record, err := externalapi.NewSourceRecord(s.sourceID, s.height, hash, s.prevHash, "", s.now().Unix())
	if err != nil {
		return nil, err
	}
	log.Tracef("Simulated %s", record)
	s.height++
	s.prevHash = hash
	return record, nil
}
