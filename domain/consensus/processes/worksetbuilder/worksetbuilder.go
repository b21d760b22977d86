package worksetbuilder

import (
	"github.com/anchorchain/anchord/domain/consensus/model"
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

type recordKey struct {
	sourceID externalapi.SourceID
	hash     string
}

// workSetBuilder keeps the latest record of every configured source and
// turns them, together with the local head, into work sets
type workSetBuilder struct {
	params            *dagconfig.Params
	difficultyManager model.DifficultyManager
	minerAddress      string
	freshnessWindow   int64

	latest  map[externalapi.SourceID]*externalapi.SourceRecord
	pending map[externalapi.SourceID][]*externalapi.SourceRecord
	seen    map[recordKey]uint64

	head        *externalapi.ChainEntry
	current     *externalapi.WorkSet
	lastWorkSet uint64
	holding     bool
}

// New instantiates a new WorkSetBuilder mining for minerAddress on top of head
func New(params *dagconfig.Params, difficultyManager model.DifficultyManager, minerAddress string,
	head *externalapi.ChainEntry) (model.WorkSetBuilder, error) {

	if !externalapi.IsLowerHex(minerAddress) {
		return nil, errors.Errorf("miner address %q is not lowercase hex", minerAddress)
	}
	if head == nil {
		return nil, errors.New("work set builder needs a head to build on")
	}
	return &workSetBuilder{
		params:            params,
		difficultyManager: difficultyManager,
		minerAddress:      minerAddress,
		freshnessWindow:   int64(params.FreshnessWindow.Seconds()),
		latest:            make(map[externalapi.SourceID]*externalapi.SourceRecord),
		pending:           make(map[externalapi.SourceID][]*externalapi.SourceRecord),
		seen:              make(map[recordKey]uint64),
		head:              head,
		holding:           true,
	}, nil
}

func (b *workSetBuilder) isConfigured(sourceID externalapi.SourceID) bool {
	for _, configured := range b.params.Sources {
		if configured == sourceID {
			return true
		}
	}
	return false
}

// AddRecord ingests a record. It becomes its source's latest record only
// when it is exactly one above the stored latest; any other record is
// queued as a pending alternate. Records already seen are ignored.
// changed reports whether the current work set was replaced or withdrawn.
func (b *workSetBuilder) AddRecord(record *externalapi.SourceRecord, now int64) (changed bool, err error) {
	sourceID := record.SourceID()
	if !b.isConfigured(sourceID) {
		return false, ruleerrors.NewErrValidation("record %s is from unconfigured source %s", record, sourceID)
	}

	key := recordKey{sourceID: sourceID, hash: record.Hash()}
	if _, ok := b.seen[key]; ok {
		log.Tracef("Ignoring already seen record %s", record)
		return false, nil
	}
	b.seen[key] = record.Height()

	latest, ok := b.latest[sourceID]
	switch {
	case !ok:
		log.Debugf("First record of %s: %s", sourceID, record)
		b.latest[sourceID] = record
	case record.Height() == latest.Height()+1:
		log.Debugf("New latest record of %s: %s", sourceID, record)
		b.latest[sourceID] = record
	default:
		log.Debugf("Queueing %s as a pending alternate of %s at height %d",
			record, sourceID, latest.Height())
		b.queuePending(record)
	}

	b.promotePending(sourceID, now)
	b.forgetOldRecords(sourceID)
	return b.rebuild(now)
}

func (b *workSetBuilder) queuePending(record *externalapi.SourceRecord) {
	sourceID := record.SourceID()
	queue := append(b.pending[sourceID], record)
	if len(queue) > b.params.MaxPendingPerSource {
		dropped := queue[0]
		log.Debugf("Pending queue of %s is full, dropping %s", sourceID, dropped)
		queue = queue[1:]
	}
	b.pending[sourceID] = queue
}

// promotePending moves pending records of sourceID into the latest slot
// while one extends the latest record. A stale latest record is replaced
// by the highest fresh pending record above it.
func (b *workSetBuilder) promotePending(sourceID externalapi.SourceID, now int64) {
	for {
		latest, ok := b.latest[sourceID]
		if !ok {
			return
		}
		queue := b.pending[sourceID]

		promoted := -1
		for i, record := range queue {
			if record.Height() == latest.Height()+1 && record.PrevHash() == latest.Hash() {
				promoted = i
				break
			}
		}
		if promoted == -1 && b.isStale(latest, now) {
			for i, record := range queue {
				if record.Height() <= latest.Height() || b.isStale(record, now) {
					continue
				}
				if promoted == -1 || record.Height() > queue[promoted].Height() {
					promoted = i
				}
			}
		}
		if promoted == -1 {
			return
		}

		record := queue[promoted]
		log.Debugf("Promoting pending record %s over %s", record, latest)
		b.latest[sourceID] = record
		b.pending[sourceID] = append(queue[:promoted:promoted], queue[promoted+1:]...)
	}
}

// forgetOldRecords bounds the dedup set of a source to the heights a
// pending alternate could still be promoted at
func (b *workSetBuilder) forgetOldRecords(sourceID externalapi.SourceID) {
	latest, ok := b.latest[sourceID]
	if !ok {
		return
	}
	window := uint64(b.params.MaxPendingPerSource) + b.params.MaxForkDepth
	if latest.Height() <= window {
		return
	}
	cutoff := latest.Height() - window
	for key, height := range b.seen {
		if key.sourceID == sourceID && height < cutoff {
			delete(b.seen, key)
		}
	}
}

func (b *workSetBuilder) isStale(record *externalapi.SourceRecord, now int64) bool {
	return now-record.Timestamp() > b.freshnessWindow
}

// SetHead records a change of the local canonical head and rebuilds
func (b *workSetBuilder) SetHead(head *externalapi.ChainEntry, now int64) error {
	if head == nil {
		return errors.New("cannot set a nil head")
	}
	b.head = head
	_, err := b.rebuild(now)
	return err
}

// Refresh re-evaluates freshness as time passes. It withdraws the current
// work set once a source goes stale, or rebuilds after a resync promotion.
func (b *workSetBuilder) Refresh(now int64) error {
	for _, sourceID := range b.params.Sources {
		b.promotePending(sourceID, now)
	}
	_, err := b.rebuild(now)
	return err
}

func (b *workSetBuilder) hold(reason string, args ...interface{}) bool {
	changed := !b.holding || b.current != nil
	if !b.holding {
		log.Infof("Holding work: "+reason, args...)
	}
	b.holding = true
	b.current = nil
	return changed
}

func (b *workSetBuilder) rebuild(now int64) (bool, error) {
	refs := make(map[externalapi.SourceID]*externalapi.SourceRecord, len(b.params.Sources))
	for _, sourceID := range b.params.Sources {
		latest, ok := b.latest[sourceID]
		if !ok {
			return b.hold("no record of %s yet", sourceID), nil
		}
		if b.isStale(latest, now) {
			return b.hold("latest record of %s is %ds old", sourceID, now-latest.Timestamp()), nil
		}
		refs[sourceID] = latest
	}

	if b.current != nil && b.current.PreviousHash().Equal(b.head.BlockHash()) && sameRefs(b.current, refs) {
		return false, nil
	}

	blockTime := max(now, b.head.Timestamp())
	state, err := b.difficultyManager.NextDifficultyState(b.head, blockTime, refs)
	if err != nil {
		return false, err
	}
	threshold := b.difficultyManager.DistanceThreshold(state.Difficulty())

	workSet, err := externalapi.NewWorkSet(b.lastWorkSet+1, b.head.Height()+1, b.head.BlockHash(),
		b.minerAddress, refs, threshold, state, blockTime, b.params.DistanceAlgorithm, b.params.Gating)
	if err != nil {
		return false, err
	}
	b.lastWorkSet = workSet.ID()
	if b.holding {
		log.Infof("Resuming work")
	}
	b.holding = false
	b.current = workSet

	log.Debugf("Issued %s", workSet)
	log.Tracef("Work set dump: %s", logger.NewLogClosure(func() string {
		return spew.Sdump(workSet)
	}))
	return true, nil
}

func sameRefs(workSet *externalapi.WorkSet, refs map[externalapi.SourceID]*externalapi.SourceRecord) bool {
	for sourceID, record := range refs {
		current, ok := workSet.SourceRef(sourceID)
		if !ok || !current.Equal(record) {
			return false
		}
	}
	return true
}

// Current returns the work set miners should be searching, or nil while holding
func (b *workSetBuilder) Current() *externalapi.WorkSet {
	return b.current
}

// IsHolding returns whether work set emission is held back
func (b *workSetBuilder) IsHolding() bool {
	return b.holding
}

// Latest returns the latest record of the given source
func (b *workSetBuilder) Latest(sourceID externalapi.SourceID) (*externalapi.SourceRecord, bool) {
	record, ok := b.latest[sourceID]
	return record, ok
}

// Pending returns a copy of the pending alternates of the given source
func (b *workSetBuilder) Pending(sourceID externalapi.SourceID) []*externalapi.SourceRecord {
	queue := b.pending[sourceID]
	pending := make([]*externalapi.SourceRecord, len(queue))
	copy(pending, queue)
	return pending
}
