package difficultymanager

import (
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

const (
	// targetSpacing is the block interval, in seconds, the adjustment
	// factor is measured in
	targetSpacing = 5

	// slowBlockGrace is how far past the target spacing a block may
	// land before a zero factor is turned into a cut
	slowBlockGrace = 7

	minimumFactor = -99

	// maxBonusExponent caps the exponential bonus well past any
	// representable difficulty
	maxBonusExponent = 1024
)

var (
	bigTwo = big.NewInt(2)
)

// ShareDifficulty computes the difficulty of a block from its parent's.
//
// The factor x = 1 - elapsed/5 + handicap raises difficulty for fast
// blocks and lowers it for slow ones:
//   - x > 0 (a fast block) becomes (5 - elapsed)^3.
//   - x == 0 with elapsed > 7 becomes -1.
//   - x below -99 means the chain stalled, and becomes (5 - elapsed)^3,
//     a cut deep enough to bring difficulty down to the floor.
//
// The result is parent + x*parent/minimum, clamped to the minimum. A
// block time before its parent's counts as zero elapsed time.
//
// Any ErrArithmetic returned comes with the minimum difficulty as the value.
func ShareDifficulty(blockTime, parentTime int64, parentDifficulty, minimumDifficulty,
	maxDifficulty *big.Int, handicap int64) (*big.Int, error) {

	if minimumDifficulty == nil || minimumDifficulty.Sign() <= 0 {
		return nil, ruleerrors.NewErrArithmetic("non-positive minimum difficulty %s", minimumDifficulty)
	}
	floor := new(big.Int).Set(minimumDifficulty)
	if parentDifficulty == nil || parentDifficulty.Sign() < 0 {
		return floor, ruleerrors.NewErrArithmetic("negative parent difficulty %s", parentDifficulty)
	}

	elapsed := blockTime - parentTime
	if elapsed < 0 {
		elapsed = 0
	}
	x := adjustmentFactor(elapsed, handicap)

	// parent + x * parent / minimum, multiplying first so that the
	// step keeps its precision when parent is close to the minimum
	step := new(big.Int).Mul(x, parentDifficulty)
	step.Quo(step, minimumDifficulty)
	next := step.Add(step, parentDifficulty)

	if maxDifficulty != nil && next.Cmp(maxDifficulty) > 0 {
		return floor, ruleerrors.NewErrArithmetic("difficulty %s overflows the maximum %s", next, maxDifficulty)
	}
	if next.Cmp(minimumDifficulty) < 0 {
		return floor, nil
	}
	return next, nil
}

// adjustmentFactor returns x for a block elapsed seconds after its parent.
// Past the -99 floor the factor switches to the cube of (5 - elapsed) rather
// than holding at -99, so a stalled chain drops straight to the minimum
// difficulty. The step is discontinuous there: elapsed=500 still yields a
// difficulty well above the minimum while elapsed=505 yields the minimum.
func adjustmentFactor(elapsed, handicap int64) *big.Int {
	raw := 1 - elapsed/targetSpacing + handicap
	switch {
	case raw > 0, raw < minimumFactor:
		cube := big.NewInt(targetSpacing - elapsed)
		return cube.Exp(cube, big.NewInt(3), nil)
	case raw == 0 && elapsed > slowBlockGrace:
		return big.NewInt(-1)
	}
	return big.NewInt(raw)
}

// ExponentialFactor adds 2^(periodCount-2) to difficulty once parentHeight
// reaches two full periods, where periodCount = (parentHeight+1)/expDiffPeriod.
func ExponentialFactor(difficulty *big.Int, parentHeight, expDiffPeriod uint64) *big.Int {
	result := new(big.Int).Set(difficulty)
	if expDiffPeriod == 0 || parentHeight < 2*expDiffPeriod {
		return result
	}
	periodCount := (parentHeight + 1) / expDiffPeriod
	exponent := min(periodCount-2, maxBonusExponent)
	bonus := new(big.Int).Exp(bigTwo, new(big.Int).SetUint64(exponent), nil)
	return result.Add(result, bonus)
}

// DistanceThreshold maps a difficulty onto a distance threshold in parts
// per billion: ceiling - (ceiling - base) * minimum / difficulty. The
// threshold is base at the minimum difficulty and rises towards ceiling.
func DistanceThreshold(difficulty, minimumDifficulty *big.Int, base, ceiling uint64) uint64 {
	if ceiling <= base || difficulty.Cmp(minimumDifficulty) <= 0 {
		return base
	}
	span := new(big.Int).SetUint64(ceiling - base)
	span.Mul(span, minimumDifficulty)
	span.Quo(span, difficulty)
	return ceiling - span.Uint64()
}
