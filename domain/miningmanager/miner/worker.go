package miner

import (
	"runtime/debug"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/processes/distance"
	"github.com/anchorchain/anchord/domain/consensus/utils/hashes"
)

// worker is a single search loop. It is idle until it receives a work
// set, then samples nonces until one clears the threshold or the search
// is cancelled, and goes back to idle either way.
type worker struct {
	id        int
	pool      *Pool
	inbox     chan message
	done      chan struct{}
	nextNonce NonceSource
	tunables  Tunables

	// workSet is the work set being searched, kept for fault reports
	workSet *externalapi.WorkSet
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	defer w.recoverFault()
	defer close(w.done)

	var workSet *externalapi.WorkSet
	for {
		if workSet == nil {
			select {
			case msg := <-w.inbox:
				var stopped bool
				workSet, stopped = w.handle(msg, nil)
				if stopped {
					return
				}
			case <-w.pool.quit:
				return
			}
			continue
		}

		var stopped bool
		workSet, stopped = w.search(workSet)
		w.workSet = nil
		if stopped {
			return
		}
	}
}

// handle applies a message and returns the work set to search next
func (w *worker) handle(msg message, current *externalapi.WorkSet) (next *externalapi.WorkSet, stopped bool) {
	switch msg := msg.(type) {
	case workMessage:
		return msg.workSet, false
	case stopMessage:
		log.Debugf("Worker %d stopped", w.id)
		return nil, true
	case updateMessage:
		w.tunables = msg.tunables
		return current, false
	}
	return current, false
}

// search samples nonces against workSet. It returns the work set to
// search next, which is nil once the worker should idle.
func (w *worker) search(workSet *externalapi.WorkSet) (next *externalapi.WorkSet, stopped bool) {
	w.workSet = workSet

	fingerprint := hashes.WorkSetFingerprint(workSet)
	references := hashes.References(workSet)
	log.Debugf("Worker %d searching %s", w.id, workSet)

	var cycles, reportedCycles uint64
	lastReport := time.Now()
	for {
		select {
		case msg := <-w.inbox:
			next, stopped := w.handle(msg, workSet)
			if stopped || next != workSet {
				return next, stopped
			}
		case <-w.pool.quit:
			return nil, true
		default:
		}
		if !w.pool.isCurrent(workSet.ID()) {
			log.Debugf("Worker %d dropped superseded work set %d", w.id, workSet.ID())
			return nil, false
		}

		nonce := w.nextNonce()
		digest := hashes.NonceDigest(workSet.MinerAddress(), fingerprint, nonce)
		evaluation, err := distance.Evaluate(workSet, references, digest)
		if err != nil {
			log.Errorf("Worker %d cannot score work set %d: %s", w.id, workSet.ID(), err)
			return nil, false
		}
		cycles++
		w.pool.hashesTried.Add(1)

		if w.tunables.MetricInterval > 0 && cycles%w.tunables.MetricInterval == 0 {
			now := time.Now()
			w.pool.reportMetric(&Metric{
				WorkerID:  w.id,
				WorkSetID: workSet.ID(),
				Cycles:    cycles - reportedCycles,
				Elapsed:   now.Sub(lastReport),
			})
			reportedCycles, lastReport = cycles, now
		}

		if !evaluation.Passed {
			continue
		}
		candidate, err := externalapi.NewCandidate(workSet, nonce, digest, hashes.BlockHash(fingerprint, digest),
			evaluation.Distances, evaluation.Score, w.id)
		if err != nil {
			log.Errorf("Worker %d built an invalid candidate: %s", w.id, err)
			return nil, false
		}
		log.Infof("Worker %d found %s after %d cycles", w.id, candidate, cycles)
		w.pool.emit(candidate)
		return nil, false
	}
}

func (w *worker) recoverFault() {
	reason := recover()
	if reason == nil {
		return
	}
	fault := &WorkerFault{WorkerID: w.id, Reason: reason}
	if w.workSet != nil {
		fault.WorkSetID = w.workSet.ID()
	}
	log.Errorf("%s\n%s", fault, debug.Stack())
	w.pool.reportFault(fault)
}
