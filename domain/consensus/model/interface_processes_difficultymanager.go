package model

import (
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// DifficultyManager provides methods to resolve the difficulty
// and distance threshold of a block
type DifficultyManager interface {
	ShareDifficulty(blockTime, parentTime int64, parentDifficulty *big.Int) *big.Int
	ExponentialFactor(difficulty *big.Int, parentHeight uint64) *big.Int
	NextDifficultyState(parent *externalapi.ChainEntry, blockTime int64,
		sourceRefs map[externalapi.SourceID]*externalapi.SourceRecord) (*externalapi.DifficultyState, error)
	DistanceThreshold(difficulty *big.Int) uint64
	GenesisDifficultyState() (*externalapi.DifficultyState, error)
}
