package externalapi

import (
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// SourceShare is the share difficulty contributed by one reference chain,
// together with the record it was last computed at.
type SourceShare struct {
	Difficulty *big.Int
	Timestamp  int64
	Hash       string
}

// DifficultyState is the difficulty bookkeeping of a single chain entry.
// A child's state is derived from its parent's.
type DifficultyState struct {
	difficulty        *big.Int
	selfDifficulty    *big.Int
	timestamp         int64
	parentDifficulty  *big.Int
	parentTimestamp   int64
	minimumDifficulty *big.Int
	shares            map[SourceID]SourceShare
}

// NewDifficultyState validates the given values and returns a DifficultyState.
// parentDifficulty may be nil for genesis.
func NewDifficultyState(difficulty, selfDifficulty *big.Int, timestamp int64,
	parentDifficulty *big.Int, parentTimestamp int64, minimumDifficulty *big.Int,
	shares map[SourceID]SourceShare) (*DifficultyState, error) {

	if minimumDifficulty == nil || minimumDifficulty.Sign() <= 0 {
		return nil, ruleerrors.NewErrValidation("minimum difficulty must be positive")
	}
	if difficulty == nil || difficulty.Cmp(minimumDifficulty) < 0 {
		return nil, ruleerrors.NewErrValidation("difficulty %s is below the minimum %s",
			difficulty, minimumDifficulty)
	}
	if selfDifficulty == nil || selfDifficulty.Sign() < 0 {
		return nil, ruleerrors.NewErrValidation("self difficulty must be non-negative")
	}

	sharesCopy := make(map[SourceID]SourceShare, len(shares))
	for sourceID, share := range shares {
		if share.Difficulty == nil || share.Difficulty.Sign() < 0 {
			return nil, ruleerrors.NewErrValidation("share difficulty of %s must be non-negative", sourceID)
		}
		sharesCopy[sourceID] = SourceShare{
			Difficulty: new(big.Int).Set(share.Difficulty),
			Timestamp:  share.Timestamp,
			Hash:       share.Hash,
		}
	}

	state := &DifficultyState{
		difficulty:        new(big.Int).Set(difficulty),
		selfDifficulty:    new(big.Int).Set(selfDifficulty),
		timestamp:         timestamp,
		parentTimestamp:   parentTimestamp,
		minimumDifficulty: new(big.Int).Set(minimumDifficulty),
		shares:            sharesCopy,
	}
	if parentDifficulty != nil {
		state.parentDifficulty = new(big.Int).Set(parentDifficulty)
	}
	return state, nil
}

// Difficulty returns the combined difficulty of the entry
func (s *DifficultyState) Difficulty() *big.Int { return new(big.Int).Set(s.difficulty) }

// SelfDifficulty returns the local chain's own share
func (s *DifficultyState) SelfDifficulty() *big.Int { return new(big.Int).Set(s.selfDifficulty) }

// Timestamp returns the entry's block time in unix seconds
func (s *DifficultyState) Timestamp() int64 { return s.timestamp }

// ParentDifficulty returns the parent's combined difficulty, or nil for genesis
func (s *DifficultyState) ParentDifficulty() *big.Int {
	if s.parentDifficulty == nil {
		return nil
	}
	return new(big.Int).Set(s.parentDifficulty)
}

// ParentTimestamp returns the parent's block time
func (s *DifficultyState) ParentTimestamp() int64 { return s.parentTimestamp }

// MinimumDifficulty returns the difficulty floor the state was computed with
func (s *DifficultyState) MinimumDifficulty() *big.Int { return new(big.Int).Set(s.minimumDifficulty) }

// Share returns the share of the given source
func (s *DifficultyState) Share(sourceID SourceID) (SourceShare, bool) {
	share, ok := s.shares[sourceID]
	if !ok {
		return SourceShare{}, false
	}
	share.Difficulty = new(big.Int).Set(share.Difficulty)
	return share, true
}

// Shares returns a copy of every source share
func (s *DifficultyState) Shares() map[SourceID]SourceShare {
	shares := make(map[SourceID]SourceShare, len(s.shares))
	for sourceID := range s.shares {
		shares[sourceID], _ = s.Share(sourceID)
	}
	return shares
}

// SourceDifficulties returns a copy of the per-source share difficulties
func (s *DifficultyState) SourceDifficulties() map[SourceID]*big.Int {
	difficulties := make(map[SourceID]*big.Int, len(s.shares))
	for sourceID, share := range s.shares {
		difficulties[sourceID] = new(big.Int).Set(share.Difficulty)
	}
	return difficulties
}

// SourceTimestamps returns a copy of the timestamps each share was computed at
func (s *DifficultyState) SourceTimestamps() map[SourceID]int64 {
	timestamps := make(map[SourceID]int64, len(s.shares))
	for sourceID, share := range s.shares {
		timestamps[sourceID] = share.Timestamp
	}
	return timestamps
}

// Equal returns whether the two states are identical
func (s *DifficultyState) Equal(other *DifficultyState) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.difficulty.Cmp(other.difficulty) != 0 ||
		s.selfDifficulty.Cmp(other.selfDifficulty) != 0 ||
		s.timestamp != other.timestamp ||
		s.parentTimestamp != other.parentTimestamp ||
		s.minimumDifficulty.Cmp(other.minimumDifficulty) != 0 {
		return false
	}
	if (s.parentDifficulty == nil) != (other.parentDifficulty == nil) {
		return false
	}
	if s.parentDifficulty != nil && s.parentDifficulty.Cmp(other.parentDifficulty) != 0 {
		return false
	}
	if len(s.shares) != len(other.shares) {
		return false
	}
	for sourceID, share := range s.shares {
		otherShare, ok := other.shares[sourceID]
		if !ok || share.Timestamp != otherShare.Timestamp || share.Hash != otherShare.Hash ||
			share.Difficulty.Cmp(otherShare.Difficulty) != 0 {
			return false
		}
	}
	return true
}
