package coordinator

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
	"github.com/anchorchain/anchord/domain/miningmanager/miner"
	"github.com/pkg/errors"
)

func (c *Coordinator) handleRecord(record *externalapi.SourceRecord) error {
	c.metrics.RecordSourceRecord(string(record.SourceID()))
	_, err := c.builder.AddRecord(record, c.unixNow())
	if err != nil {
		return err
	}
	c.syncPool()
	return nil
}

// handleCandidate offers a candidate of the current work set to the
// multiverse. Candidates of any other work set are stale.
func (c *Coordinator) handleCandidate(candidate *externalapi.Candidate) error {
	current := c.builder.Current()
	if current == nil || candidate.WorkSetID() != current.ID() {
		currentID := uint64(0)
		if current != nil {
			currentID = current.ID()
		}
		return ruleerrors.NewErrStaleWork(candidate.WorkSetID(), currentID)
	}

	result, err := c.multiverse.Accept(candidate)
	if err != nil {
		c.metrics.RecordRejected(rejectionReason(err))
		return err
	}
	c.metrics.RecordAccepted(result.Status.String(), result.Reorg, len(result.Pruned))
	c.persist(result)
	c.recordMultiverse()

	if result.Status != externalapi.AcceptedAsHead || result.Duplicate {
		return nil
	}
	err = c.builder.SetHead(c.multiverse.Head(), c.unixNow())
	c.syncPool()
	return err
}

func (c *Coordinator) handleMetric(metric *miner.Metric) error {
	currentID := c.pool.CurrentWorkSetID()
	if metric.WorkSetID != currentID {
		return ruleerrors.NewErrStaleWork(metric.WorkSetID, currentID)
	}
	c.metrics.RecordWorkerReport(metric.WorkerID, metric.Cycles, metric.HashRate())
	log.Tracef("Worker %d tried %d nonces of work set %d in %s", metric.WorkerID, metric.Cycles,
		metric.WorkSetID, metric.Elapsed)
	return nil
}

func (c *Coordinator) handleFault(fault *miner.WorkerFault) {
	log.Errorf("%s, respawning", fault)
	c.metrics.RecordWorkerFault()
	c.pool.Respawn(fault)
}

// refresh lets the builder notice sources going stale while no records arrive
func (c *Coordinator) refresh() {
	c.logError(c.builder.Refresh(c.unixNow()))
	c.syncPool()
}

// syncPool points the workers at the builder's current work set, or
// idles them while it holds
func (c *Coordinator) syncPool() {
	current := c.builder.Current()
	c.metrics.SetHolding(current == nil)
	if current == nil {
		c.pool.Cancel()
		return
	}
	if current.ID() != c.pool.CurrentWorkSetID() {
		c.pool.Assign(current)
	}
}

// persist writes what an accepted candidate changed. A failed write is
// logged and leaves the in-memory multiverse authoritative.
func (c *Coordinator) persist(result *externalapi.AcceptResult) {
	if c.store == nil {
		return
	}
	if !result.Duplicate {
		err := c.store.Stage(result.Entry)
		if err != nil {
			log.Errorf("Cannot persist %s: %s", result.Entry, err)
		}
	}
	c.deleteEntries(result.Pruned)
}

func (c *Coordinator) deleteEntries(entries []*externalapi.ChainEntry) {
	if c.store == nil {
		return
	}
	for _, entry := range entries {
		c.store.StageDelete(entry)
	}
	err := c.store.Commit()
	if err != nil {
		log.Errorf("Cannot commit chain entries: %+v", err)
		c.store.Discard()
	}
}

func (c *Coordinator) recordMultiverse() {
	c.metrics.SetMultiverse(c.multiverse.Head().Height(), c.multiverse.Len())
}

func (c *Coordinator) logError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ruleerrors.ErrStaleWork) {
		c.metrics.RecordStaleWork()
		log.Debugf("Discarding stale work: %s", err)
		return
	}
	var ruleError ruleerrors.RuleError
	if errors.As(err, &ruleError) {
		log.Warnf("%s", err)
		return
	}
	log.Errorf("%+v", err)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ruleerrors.ErrUnknownPrevHash):
		return "unknown_prev_hash"
	case errors.Is(err, ruleerrors.ErrDuplicateEntry):
		return "duplicate"
	case errors.Is(err, ruleerrors.ErrDistanceBelowThreshold):
		return "distance_below_threshold"
	case errors.Is(err, ruleerrors.ErrBadBlockHash):
		return "bad_block_hash"
	case errors.Is(err, ruleerrors.ErrValidation):
		return "validation"
	}
	return "other"
}
