package miner

import (
	"fmt"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// Tunables are the worker settings that can change while mining
type Tunables struct {
	// MetricInterval is the number of iterations between metric reports
	MetricInterval uint64
}

// Metric is a periodic liveness and throughput report of a single worker
type Metric struct {
	WorkerID  int
	WorkSetID uint64
	Cycles    uint64
	Elapsed   time.Duration
}

// HashRate returns the reported cycles per second
func (m *Metric) HashRate() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.Cycles) / m.Elapsed.Seconds()
}

// WorkerFault reports a worker that exited unexpectedly
type WorkerFault struct {
	WorkerID  int
	WorkSetID uint64
	Reason    interface{}
}

func (f *WorkerFault) Error() string {
	return fmt.Sprintf("worker %d faulted on work set %d: %v", f.WorkerID, f.WorkSetID, f.Reason)
}

// message is anything the pool sends to a worker
type message interface {
	isMessage()
}

type workMessage struct {
	workSet *externalapi.WorkSet
}

type stopMessage struct{}

type updateMessage struct {
	tunables Tunables
}

func (workMessage) isMessage()   {}
func (stopMessage) isMessage()   {}
func (updateMessage) isMessage() {}
