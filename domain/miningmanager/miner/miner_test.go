package miner

import (
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/processes/distance"
	"github.com/anchorchain/anchord/domain/consensus/utils/hashes"
)

const testTimeout = 10 * time.Second

func testWorkSet(t *testing.T, id uint64, threshold uint64) *externalapi.WorkSet {
	record, err := externalapi.NewSourceRecord("btc", 5, strings.Repeat("ab", 32), strings.Repeat("cd", 32), "", 100)
	if err != nil {
		t.Fatalf("NewSourceRecord: %s", err)
	}
	state, err := externalapi.NewDifficultyState(big.NewInt(10), big.NewInt(10), 200, big.NewInt(10), 100,
		big.NewInt(10), nil)
	if err != nil {
		t.Fatalf("NewDifficultyState: %s", err)
	}
	prevHash, _ := externalapi.NewDomainHashFromString(strings.Repeat("11", 32))
	workSet, err := externalapi.NewWorkSet(id, 1, prevHash, "beef",
		map[externalapi.SourceID]*externalapi.SourceRecord{"btc": record}, threshold, state, 200+int64(id),
		externalapi.DistanceAlgorithmCosine, externalapi.GatingPerSource)
	if err != nil {
		t.Fatalf("NewWorkSet: %s", err)
	}
	return workSet
}

func counterNonceSource(workerID int) NonceSource {
	nonce := uint64(workerID) << 32
	return func() uint64 {
		nonce++
		return nonce
	}
}

func newTestPool(t *testing.T, cfg *Config) *Pool {
	if cfg.NewNonceSource == nil {
		cfg.NewNonceSource = counterNonceSource
	}
	pool, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool: %s", err)
	}
	t.Cleanup(pool.Stop)
	return pool
}

func receiveCandidate(t *testing.T, pool *Pool) *externalapi.Candidate {
	select {
	case candidate := <-pool.Results():
		return candidate
	case fault := <-pool.Faults():
		t.Fatalf("unexpected fault: %s", fault)
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for a candidate")
	}
	return nil
}

func TestNewPoolRejectsNoWorkers(t *testing.T) {
	for _, workers := range []int{0, -1} {
		_, err := NewPool(&Config{Workers: workers})
		if err == nil {
			t.Fatalf("TestNewPoolRejectsNoWorkers: NewPool(%d) unexpectedly succeeded", workers)
		}
	}
}

func TestPoolEmitsValidCandidate(t *testing.T) {
	pool := newTestPool(t, &Config{Workers: 3})
	workSet := testWorkSet(t, 1, 0)
	pool.Assign(workSet)

	candidate := receiveCandidate(t, pool)
	if candidate.WorkSetID() != workSet.ID() {
		t.Fatalf("TestPoolEmitsValidCandidate: candidate for work set %d, expected %d",
			candidate.WorkSetID(), workSet.ID())
	}
	if candidate.WorkerID() < 0 || candidate.WorkerID() >= 3 {
		t.Fatalf("TestPoolEmitsValidCandidate: unexpected worker id %d", candidate.WorkerID())
	}

	fingerprint := hashes.WorkSetFingerprint(workSet)
	digest := hashes.NonceDigest(workSet.MinerAddress(), fingerprint, candidate.Nonce())
	if digest != candidate.Digest() || !hashes.BlockHash(fingerprint, digest).Equal(candidate.BlockHash()) {
		t.Fatalf("TestPoolEmitsValidCandidate: candidate doesn't match its nonce")
	}
	evaluation, err := distance.Evaluate(workSet, hashes.References(workSet), digest)
	if err != nil {
		t.Fatalf("TestPoolEmitsValidCandidate: Evaluate: %s", err)
	}
	if evaluation.Score != candidate.Distance() || len(candidate.Distances()) != 2 {
		t.Fatalf("TestPoolEmitsValidCandidate: candidate carries wrong distances")
	}
}

func TestSupersededWorkSetIsNeverEmitted(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	newNonceSource := func(workerID int) NonceSource {
		next := counterNonceSource(workerID)
		first := true
		return func() uint64 {
			if first {
				first = false
				close(entered)
				<-release
			}
			return next()
		}
	}
	pool := newTestPool(t, &Config{Workers: 1, NewNonceSource: newNonceSource})

	first := testWorkSet(t, 1, 0)
	second := testWorkSet(t, 2, 0)
	pool.Assign(first)

	// The worker is mid-iteration on the first work set when the second
	// one supersedes it
	<-entered
	pool.Assign(second)
	close(release)

	candidate := receiveCandidate(t, pool)
	if candidate.WorkSetID() != second.ID() {
		t.Fatalf("TestSupersededWorkSetIsNeverEmitted: got a candidate for superseded work set %d",
			candidate.WorkSetID())
	}
}

func TestCancelIdlesWorkers(t *testing.T) {
	var tries atomic.Uint64
	newNonceSource := func(workerID int) NonceSource {
		next := counterNonceSource(workerID)
		return func() uint64 {
			tries.Add(1)
			return next()
		}
	}
	pool := newTestPool(t, &Config{Workers: 2, NewNonceSource: newNonceSource})

	pool.Assign(testWorkSet(t, 1, externalapi.MaxDistance))
	deadline := time.Now().Add(testTimeout)
	for tries.Load() < 100 {
		if time.Now().After(deadline) {
			t.Fatalf("TestCancelIdlesWorkers: workers never started")
		}
		time.Sleep(time.Millisecond)
	}

	pool.Cancel()
	if pool.CurrentWorkSetID() != 0 {
		t.Fatalf("TestCancelIdlesWorkers: current work set id is %d after Cancel", pool.CurrentWorkSetID())
	}
	time.Sleep(50 * time.Millisecond)
	triesAfterCancel := tries.Load()
	time.Sleep(50 * time.Millisecond)
	if tries.Load() != triesAfterCancel {
		t.Fatalf("TestCancelIdlesWorkers: workers kept searching after Cancel")
	}

	workSet := testWorkSet(t, 2, 0)
	pool.Assign(workSet)
	candidate := receiveCandidate(t, pool)
	if candidate.WorkSetID() != workSet.ID() {
		t.Fatalf("TestCancelIdlesWorkers: candidate for work set %d, expected %d",
			candidate.WorkSetID(), workSet.ID())
	}
}

func TestFaultedWorkerIsRespawned(t *testing.T) {
	var created atomic.Int32
	newNonceSource := func(workerID int) NonceSource {
		next := counterNonceSource(workerID)
		if created.Add(1) == 1 {
			return func() uint64 {
				panic("nonce source exhausted")
			}
		}
		return next
	}
	pool := newTestPool(t, &Config{Workers: 1, NewNonceSource: newNonceSource})

	workSet := testWorkSet(t, 1, 0)
	pool.Assign(workSet)

	var fault *WorkerFault
	select {
	case fault = <-pool.Faults():
	case <-time.After(testTimeout):
		t.Fatalf("TestFaultedWorkerIsRespawned: timed out waiting for the fault")
	}
	if fault.WorkerID != 0 || fault.WorkSetID != workSet.ID() {
		t.Fatalf("TestFaultedWorkerIsRespawned: unexpected fault %s", fault)
	}
	if pool.Workers() != 0 {
		t.Fatalf("TestFaultedWorkerIsRespawned: faulted worker is still counted as live")
	}

	pool.Respawn(fault)
	if pool.Workers() != 1 {
		t.Fatalf("TestFaultedWorkerIsRespawned: worker wasn't respawned")
	}
	candidate := receiveCandidate(t, pool)
	if candidate.WorkSetID() != workSet.ID() {
		t.Fatalf("TestFaultedWorkerIsRespawned: respawned worker wasn't reissued the current work set")
	}
}

func TestMetricsFollowTunables(t *testing.T) {
	pool := newTestPool(t, &Config{Workers: 1, Tunables: Tunables{MetricInterval: 10}})
	workSet := testWorkSet(t, 1, externalapi.MaxDistance)
	pool.Assign(workSet)

	waitForMetric := func(cycles uint64) {
		deadline := time.After(testTimeout)
		for {
			select {
			case metric := <-pool.Metrics():
				if metric.WorkSetID != workSet.ID() || metric.WorkerID != 0 {
					t.Fatalf("TestMetricsFollowTunables: unexpected metric %+v", metric)
				}
				if metric.Cycles == cycles {
					return
				}
			case <-deadline:
				t.Fatalf("TestMetricsFollowTunables: no metric reporting %d cycles", cycles)
			}
		}
	}
	waitForMetric(10)
	pool.Update(Tunables{MetricInterval: 5})
	waitForMetric(5)
}

func TestStopIsIdempotent(t *testing.T) {
	pool, err := NewPool(&Config{Workers: 2, NewNonceSource: counterNonceSource})
	if err != nil {
		t.Fatalf("TestStopIsIdempotent: NewPool: %s", err)
	}
	pool.Assign(testWorkSet(t, 1, externalapi.MaxDistance))
	pool.Stop()
	pool.Stop()
	if pool.CurrentWorkSetID() != 0 {
		t.Fatalf("TestStopIsIdempotent: stopped pool still has a current work set")
	}
}
