package multiverse

import (
	"sort"

	"github.com/anchorchain/anchord/domain/consensus/model"
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/davecgh/go-spew/spew"
)

// multiverse is the forest of every accepted chain entry. The canonical
// head is the entry with the greatest cumulative difficulty, ties going
// to the lowest block hash. That order is total, so any causally
// consistent replay of the same candidates selects the same head.
type multiverse struct {
	maxForkDepth uint64

	genesis  *externalapi.ChainEntry
	head     *externalapi.ChainEntry
	byHeight map[uint64][]*externalapi.ChainEntry
	byHash   map[externalapi.DomainHash]*externalapi.ChainEntry
}

// New instantiates a new Multiverse rooted at genesis. A maxForkDepth of
// zero disables pruning.
func New(genesis *externalapi.ChainEntry, maxForkDepth uint64) model.Multiverse {
	mv := &multiverse{
		maxForkDepth: maxForkDepth,
		genesis:      genesis,
	}
	mv.reset()
	return mv
}

func (mv *multiverse) reset() {
	mv.head = mv.genesis
	mv.byHeight = map[uint64][]*externalapi.ChainEntry{0: {mv.genesis}}
	mv.byHash = map[externalapi.DomainHash]*externalapi.ChainEntry{*mv.genesis.BlockHash(): mv.genesis}
}

// Accept validates a candidate and inserts the entry it produces.
// Rejections return a rule error and leave the forest unchanged.
func (mv *multiverse) Accept(candidate *externalapi.Candidate) (*externalapi.AcceptResult, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "multiverse.Accept")
	defer onEnd()

	result, err := mv.accept(candidate)
	if err != nil {
		log.Debugf("Rejected %s: %s", candidate, err)
		return &externalapi.AcceptResult{Status: externalapi.Rejected}, err
	}
	return result, nil
}

func (mv *multiverse) accept(candidate *externalapi.Candidate) (*externalapi.AcceptResult, error) {
	err := validateCandidate(candidate)
	if err != nil {
		return nil, err
	}

	workSet := candidate.WorkSet()
	if existing, ok := mv.byHash[*candidate.BlockHash()]; ok {
		if !samePayload(existing, candidate) {
			return nil, ruleerrors.NewErrDuplicateEntry(existing.BlockHash().String(), existing.Height())
		}
		log.Debugf("Ignoring duplicate %s", candidate)
		status := externalapi.AcceptedAsFork
		if existing == mv.head {
			status = externalapi.AcceptedAsHead
		}
		return &externalapi.AcceptResult{Status: status, Entry: existing, Duplicate: true}, nil
	}

	parent, ok := mv.byHash[*workSet.PreviousHash()]
	if !ok || parent.Height()+1 != workSet.TargetHeight() {
		return nil, ruleerrors.NewErrUnknownPrevHash(workSet.PreviousHash().String(), workSet.TargetHeight())
	}

	entry, err := externalapi.NewChainEntry(candidate, parent)
	if err != nil {
		return nil, err
	}
	mv.insert(entry)

	result := &externalapi.AcceptResult{Status: externalapi.AcceptedAsFork, Entry: entry}
	if mv.head.Less(entry) {
		previousHead := mv.head
		mv.head = entry
		result.Status = externalapi.AcceptedAsHead
		result.PreviousHead = previousHead
		result.Reorg = !entry.PrevHash().Equal(previousHead.BlockHash())
		if result.Reorg {
			log.Infof("Reorg: head moved from %s to %s", previousHead, entry)
		} else {
			log.Infof("New head %s", entry)
		}
	} else {
		log.Infof("Accepted fork %s", entry)
	}

	result.Pruned = mv.pruneDeepForks()
	log.Tracef("Multiverse after accepting %s: %s", entry.BlockHash(), logger.NewLogClosure(func() string {
		return spew.Sdump(mv.Snapshot())
	}))
	return result, nil
}

func (mv *multiverse) insert(entry *externalapi.ChainEntry) {
	mv.byHash[*entry.BlockHash()] = entry
	mv.byHeight[entry.Height()] = append(mv.byHeight[entry.Height()], entry)
}

func (mv *multiverse) remove(entry *externalapi.ChainEntry) {
	delete(mv.byHash, *entry.BlockHash())
	entries := mv.byHeight[entry.Height()]
	for i, candidate := range entries {
		if candidate == entry {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(mv.byHeight, entry.Height())
		return
	}
	mv.byHeight[entry.Height()] = entries
}

// nonCanonical returns every entry off the canonical chain, along with
// the canonical chain down to the lowest height among them
func (mv *multiverse) nonCanonical() (forks []*externalapi.ChainEntry,
	canonical map[externalapi.DomainHash]*externalapi.ChainEntry) {

	// Every height up to the head holds one canonical entry, so forks
	// show up as crowded heights or as heights above the head
	var lowest uint64
	found := false
	for height, entries := range mv.byHeight {
		if height > mv.head.Height() || len(entries) > 1 {
			if !found || height < lowest {
				lowest = height
				found = true
			}
		}
	}
	if !found {
		return nil, nil
	}

	canonical = make(map[externalapi.DomainHash]*externalapi.ChainEntry)
	for entry := mv.head; entry != nil; entry = mv.byHash[*entry.PrevHash()] {
		canonical[*entry.BlockHash()] = entry
		if entry.IsGenesis() || entry.Height() < lowest {
			break
		}
	}
	for height, entries := range mv.byHeight {
		if height < lowest {
			continue
		}
		for _, entry := range entries {
			if _, ok := canonical[*entry.BlockHash()]; !ok {
				forks = append(forks, entry)
			}
		}
	}
	return forks, canonical
}

// forkPoint returns the canonical ancestor a non-canonical entry diverges from
func (mv *multiverse) forkPoint(entry *externalapi.ChainEntry,
	canonical map[externalapi.DomainHash]*externalapi.ChainEntry) *externalapi.ChainEntry {

	for {
		if _, ok := canonical[*entry.BlockHash()]; ok {
			return entry
		}
		parent, ok := mv.byHash[*entry.PrevHash()]
		if !ok {
			return mv.genesis
		}
		entry = parent
	}
}

// pruneDeepForks drops every branch whose fork point lies more than
// maxForkDepth below the canonical head
func (mv *multiverse) pruneDeepForks() []*externalapi.ChainEntry {
	if mv.maxForkDepth == 0 {
		return nil
	}
	forks, canonical := mv.nonCanonical()
	var pruned []*externalapi.ChainEntry
	for _, entry := range forks {
		forkPoint := mv.forkPoint(entry, canonical)
		if mv.head.Height()-forkPoint.Height() > mv.maxForkDepth {
			pruned = append(pruned, entry)
		}
	}
	for _, entry := range pruned {
		mv.remove(entry)
	}
	if len(pruned) > 0 {
		log.Debugf("Pruned %d entries diverging more than %d below the head", len(pruned), mv.maxForkDepth)
	}
	sortEntries(pruned)
	return pruned
}

// Restore re-accepts persisted candidates in height order. Candidates that
// no longer validate or whose parent is gone are skipped.
func (mv *multiverse) Restore(candidates []*externalapi.Candidate) (restored int) {
	sorted := make([]*externalapi.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WorkSet().TargetHeight() < sorted[j].WorkSet().TargetHeight()
	})

	for _, candidate := range sorted {
		_, err := mv.accept(candidate)
		if err != nil {
			log.Warnf("Skipping persisted %s: %s", candidate, err)
			continue
		}
		restored++
	}
	log.Infof("Restored %d of %d persisted entries, head is %s", restored, len(candidates), mv.head)
	return restored
}

// Genesis returns the root entry
func (mv *multiverse) Genesis() *externalapi.ChainEntry {
	return mv.genesis
}

// Head returns the canonical head
func (mv *multiverse) Head() *externalapi.ChainEntry {
	return mv.head
}

// Entry returns the entry with the given block hash
func (mv *multiverse) Entry(blockHash *externalapi.DomainHash) (*externalapi.ChainEntry, bool) {
	entry, ok := mv.byHash[*blockHash]
	return entry, ok
}

// CanonicalChain returns the canonical chain from genesis to the head
func (mv *multiverse) CanonicalChain() []*externalapi.ChainEntry {
	chain := make([]*externalapi.ChainEntry, mv.head.Height()+1)
	for entry := mv.head; ; entry = mv.byHash[*entry.PrevHash()] {
		chain[entry.Height()] = entry
		if entry.IsGenesis() {
			break
		}
	}
	return chain
}

// Snapshot returns a copy of the forest keyed by height. Entries of a
// height are sorted by block hash.
func (mv *multiverse) Snapshot() map[uint64][]*externalapi.ChainEntry {
	snapshot := make(map[uint64][]*externalapi.ChainEntry, len(mv.byHeight))
	for height, entries := range mv.byHeight {
		entriesCopy := make([]*externalapi.ChainEntry, len(entries))
		copy(entriesCopy, entries)
		sortEntries(entriesCopy)
		snapshot[height] = entriesCopy
	}
	return snapshot
}

// Len returns the number of entries, genesis included
func (mv *multiverse) Len() int {
	return len(mv.byHash)
}

// Purge clears every entry except genesis and returns the removed entries
func (mv *multiverse) Purge() []*externalapi.ChainEntry {
	removed := make([]*externalapi.ChainEntry, 0, len(mv.byHash)-1)
	for _, entry := range mv.byHash {
		if entry != mv.genesis {
			removed = append(removed, entry)
		}
	}
	mv.reset()
	sortEntries(removed)
	log.Infof("Purged %d entries, head is back at genesis", len(removed))
	return removed
}

// PurgeForks clears every entry off the canonical chain and returns them
func (mv *multiverse) PurgeForks() []*externalapi.ChainEntry {
	forks, _ := mv.nonCanonical()
	for _, entry := range forks {
		mv.remove(entry)
	}
	sortEntries(forks)
	log.Infof("Purged %d non-canonical entries", len(forks))
	return forks
}

func sortEntries(entries []*externalapi.ChainEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Height() != entries[j].Height() {
			return entries[i].Height() < entries[j].Height()
		}
		return entries[i].BlockHash().Less(entries[j].BlockHash())
	})
}
