package coordinator

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// MultiverseSnapshot is a copy of the multiverse at one point of the
// event loop. Chain entries are immutable and safe to share.
type MultiverseSnapshot struct {
	Head           *externalapi.ChainEntry
	CanonicalChain []*externalapi.ChainEntry
	Entries        map[uint64][]*externalapi.ChainEntry
}

// query runs f inside the event loop and waits for it to finish
func (c *Coordinator) query(f func()) error {
	done := make(chan struct{})
	select {
	case c.queries <- func() {
		f()
		close(done)
	}:
	case <-c.quit:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

// GetMultiverse returns a snapshot of the multiverse
func (c *Coordinator) GetMultiverse() (*MultiverseSnapshot, error) {
	var snapshot *MultiverseSnapshot
	err := c.query(func() {
		snapshot = &MultiverseSnapshot{
			Head:           c.multiverse.Head(),
			CanonicalChain: c.multiverse.CanonicalChain(),
			Entries:        c.multiverse.Snapshot(),
		}
	})
	return snapshot, err
}

// PurgeMultiverse drops every entry off the canonical chain and returns
// how many were dropped
func (c *Coordinator) PurgeMultiverse() (int, error) {
	purged := 0
	err := c.query(func() {
		removed := c.multiverse.PurgeForks()
		c.deleteEntries(removed)
		c.recordMultiverse()
		purged = len(removed)
	})
	return purged, err
}

// ResetMultiverse drops every entry but genesis and restarts mining on it
func (c *Coordinator) ResetMultiverse() (int, error) {
	purged := 0
	err := c.query(func() {
		removed := c.multiverse.Purge()
		c.deleteEntries(removed)
		c.recordMultiverse()
		purged = len(removed)
		c.logError(c.builder.SetHead(c.multiverse.Head(), c.unixNow()))
		c.syncPool()
	})
	return purged, err
}

// CurrentWorkSet returns the work set being mined, or nil while holding
func (c *Coordinator) CurrentWorkSet() (*externalapi.WorkSet, error) {
	var workSet *externalapi.WorkSet
	err := c.query(func() {
		workSet = c.builder.Current()
	})
	return workSet, err
}
