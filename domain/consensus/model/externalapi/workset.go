package externalapi

import (
	"fmt"
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// WorkSet is everything a miner needs to search for the block at
// TargetHeight. It is immutable once issued and identified by its ID.
type WorkSet struct {
	id                uint64
	targetHeight      uint64
	previousHash      *DomainHash
	minerAddress      string
	sourceRefs        map[SourceID]*SourceRecord
	distanceThreshold uint64
	difficultyState   *DifficultyState
	timestamp         int64
	algorithm         DistanceAlgorithm
	gating            GatingMode
}

// NewWorkSet validates the given values and returns a WorkSet
func NewWorkSet(id, targetHeight uint64, previousHash *DomainHash, minerAddress string,
	sourceRefs map[SourceID]*SourceRecord, distanceThreshold uint64,
	difficultyState *DifficultyState, timestamp int64,
	algorithm DistanceAlgorithm, gating GatingMode) (*WorkSet, error) {

	if id == 0 {
		return nil, ruleerrors.NewErrValidation("work set id must be positive")
	}
	if targetHeight == 0 {
		return nil, ruleerrors.NewErrValidation("work set can't target the genesis height")
	}
	if previousHash == nil {
		return nil, ruleerrors.NewErrValidation("work set %d is missing its previous hash", id)
	}
	if !IsLowerHex(minerAddress) {
		return nil, ruleerrors.NewErrValidation("miner address %q is not lowercase hex", minerAddress)
	}
	if len(sourceRefs) == 0 {
		return nil, ruleerrors.NewErrValidation("work set %d has no source references", id)
	}
	refs := make(map[SourceID]*SourceRecord, len(sourceRefs))
	for sourceID, record := range sourceRefs {
		if record == nil || record.SourceID() != sourceID {
			return nil, ruleerrors.NewErrValidation("work set %d has a mismatched reference for %s", id, sourceID)
		}
		refs[sourceID] = record
	}
	if distanceThreshold > MaxDistance {
		return nil, ruleerrors.NewErrValidation("distance threshold %d is above %d", distanceThreshold, MaxDistance)
	}
	if difficultyState == nil {
		return nil, ruleerrors.NewErrValidation("work set %d is missing its difficulty state", id)
	}
	if _, ok := distanceAlgorithmNames[algorithm]; !ok {
		return nil, ruleerrors.NewErrValidation("unknown distance algorithm %d", algorithm)
	}
	if _, ok := gatingModeNames[gating]; !ok {
		return nil, ruleerrors.NewErrValidation("unknown gating mode %d", gating)
	}

	return &WorkSet{
		id:                id,
		targetHeight:      targetHeight,
		previousHash:      previousHash,
		minerAddress:      minerAddress,
		sourceRefs:        refs,
		distanceThreshold: distanceThreshold,
		difficultyState:   difficultyState,
		timestamp:         timestamp,
		algorithm:         algorithm,
		gating:            gating,
	}, nil
}

// ID returns the work set's sequence number
func (ws *WorkSet) ID() uint64 { return ws.id }

// TargetHeight returns the height the work set mines for
func (ws *WorkSet) TargetHeight() uint64 { return ws.targetHeight }

// PreviousHash returns the hash of the entry being extended
func (ws *WorkSet) PreviousHash() *DomainHash { return ws.previousHash }

// MinerAddress returns the hex address mixed into every nonce digest
func (ws *WorkSet) MinerAddress() string { return ws.minerAddress }

// SourceRefs returns a copy of the referenced source records
func (ws *WorkSet) SourceRefs() map[SourceID]*SourceRecord {
	refs := make(map[SourceID]*SourceRecord, len(ws.sourceRefs))
	for sourceID, record := range ws.sourceRefs {
		refs[sourceID] = record
	}
	return refs
}

// SourceRef returns the referenced record of the given source
func (ws *WorkSet) SourceRef(sourceID SourceID) (*SourceRecord, bool) {
	record, ok := ws.sourceRefs[sourceID]
	return record, ok
}

// SourceIDs returns the referenced sources in sorted order
func (ws *WorkSet) SourceIDs() []SourceID {
	ids := make([]SourceID, 0, len(ws.sourceRefs))
	for sourceID := range ws.sourceRefs {
		ids = append(ids, sourceID)
	}
	return SortSourceIDs(ids)
}

// DistanceThreshold returns the threshold in parts per billion
func (ws *WorkSet) DistanceThreshold() uint64 { return ws.distanceThreshold }

// Difficulty returns the combined difficulty of the block being mined
func (ws *WorkSet) Difficulty() *big.Int { return ws.difficultyState.Difficulty() }

// DifficultyState returns the difficulty state the mined entry will carry
func (ws *WorkSet) DifficultyState() *DifficultyState { return ws.difficultyState }

// Timestamp returns the block time of the block being mined
func (ws *WorkSet) Timestamp() int64 { return ws.timestamp }

// Algorithm returns the distance algorithm miners must use
func (ws *WorkSet) Algorithm() DistanceAlgorithm { return ws.algorithm }

// Gating returns how distances are reduced before the threshold check
func (ws *WorkSet) Gating() GatingMode { return ws.gating }

func (ws *WorkSet) String() string {
	return fmt.Sprintf("work set %d (height %d on %s, threshold %d, difficulty %s)",
		ws.id, ws.targetHeight, ws.previousHash, ws.distanceThreshold, ws.difficultyState.difficulty)
}
