package difficultymanager

import (
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/model"
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/pkg/errors"
)

// difficultyManager resolves the difficulty of blocks from their
// parent's difficulty state and the records they reference
type difficultyManager struct {
	params *dagconfig.Params
}

// New instantiates a new DifficultyManager
func New(params *dagconfig.Params) model.DifficultyManager {
	return &difficultyManager{
		params: params,
	}
}

// ShareDifficulty computes a share difficulty under the network's minimum
// and handicap. Arithmetic errors are logged and clamp to the minimum.
func (dm *difficultyManager) ShareDifficulty(blockTime, parentTime int64, parentDifficulty *big.Int) *big.Int {
	next, err := ShareDifficulty(blockTime, parentTime, parentDifficulty,
		dm.params.MinimumDifficulty, dm.params.MaxDifficulty, dm.params.Handicap)
	if err != nil {
		log.Warnf("Clamping difficulty to the minimum: %s", err)
		return new(big.Int).Set(dm.params.MinimumDifficulty)
	}
	return next
}

// ExponentialFactor applies the exponential bonus from the singularity
// height on. A bonus overflowing the maximum difficulty clamps to the minimum.
func (dm *difficultyManager) ExponentialFactor(difficulty *big.Int, parentHeight uint64) *big.Int {
	if parentHeight < dm.params.SingularityHeight {
		return new(big.Int).Set(difficulty)
	}
	result := ExponentialFactor(difficulty, parentHeight, dm.params.ExpDiffPeriod)
	if result.Cmp(dm.params.MaxDifficulty) > 0 {
		log.Warnf("Clamping difficulty to the minimum: exponential bonus at height %d "+
			"overflows the maximum", parentHeight)
		return new(big.Int).Set(dm.params.MinimumDifficulty)
	}
	return result
}

// NextDifficultyState derives the difficulty state of a block at blockTime
// on top of parent that references sourceRefs.
//
// The share of a source is only recomputed when its referenced record
// changed since the parent, measured between the two records' timestamps.
// A source seen for the first time starts at the minimum difficulty. The
// self share is measured between the parent and the new block.
func (dm *difficultyManager) NextDifficultyState(parent *externalapi.ChainEntry, blockTime int64,
	sourceRefs map[externalapi.SourceID]*externalapi.SourceRecord) (*externalapi.DifficultyState, error) {

	if parent == nil {
		return nil, errors.New("cannot derive a difficulty state without a parent")
	}
	parentState := parent.DifficultyState()
	if blockTime < parent.Timestamp() {
		blockTime = parent.Timestamp()
	}

	shares := make(map[externalapi.SourceID]externalapi.SourceShare, len(sourceRefs))
	sum := new(big.Int)
	for sourceID, record := range sourceRefs {
		share, ok := parentState.Share(sourceID)
		switch {
		case !ok:
			share = externalapi.SourceShare{
				Difficulty: new(big.Int).Set(dm.params.MinimumDifficulty),
				Timestamp:  record.Timestamp(),
				Hash:       record.Hash(),
			}
		case share.Hash != record.Hash():
			share = externalapi.SourceShare{
				Difficulty: dm.ShareDifficulty(record.Timestamp(), share.Timestamp, share.Difficulty),
				Timestamp:  record.Timestamp(),
				Hash:       record.Hash(),
			}
		}
		shares[sourceID] = share
		sum.Add(sum, share.Difficulty)
	}

	selfDifficulty := dm.ShareDifficulty(blockTime, parent.Timestamp(), parentState.SelfDifficulty())
	sum.Add(sum, selfDifficulty)

	difficulty := dm.ShareDifficulty(blockTime, parent.Timestamp(), sum)
	difficulty = dm.ExponentialFactor(difficulty, parent.Height())

	log.Tracef("Difficulty at height %d: %s (self share %s, %d source shares)",
		parent.Height()+1, difficulty, selfDifficulty, len(shares))

	return externalapi.NewDifficultyState(difficulty, selfDifficulty, blockTime,
		parentState.Difficulty(), parent.Timestamp(), dm.params.MinimumDifficulty, shares)
}

// DistanceThreshold returns the threshold work at the given difficulty
// must clear under the network's distance algorithm
func (dm *difficultyManager) DistanceThreshold(difficulty *big.Int) uint64 {
	thresholds := dm.params.ThresholdRange()
	return DistanceThreshold(difficulty, dm.params.MinimumDifficulty, thresholds.Base, thresholds.Ceiling)
}

// GenesisDifficultyState returns the difficulty state of the root entry
func (dm *difficultyManager) GenesisDifficultyState() (*externalapi.DifficultyState, error) {
	return externalapi.NewDifficultyState(dm.params.GenesisDifficulty, dm.params.GenesisDifficulty,
		dm.params.GenesisTimestamp, nil, 0, dm.params.MinimumDifficulty, nil)
}
