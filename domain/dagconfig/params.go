package dagconfig

import (
	"math/big"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

var (
	bigOne = big.NewInt(1)

	// maxDifficulty is the value above which difficulty arithmetic is
	// considered to have overflowed, 2^256 - 1.
	maxDifficulty = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 256), bigOne)

	mainnetMinimumDifficulty = big.NewInt(1_966_995_338_232)
	mainnetGenesisDifficulty = big.NewInt(23_521_577_413_209)

	testnetMinimumDifficulty = big.NewInt(1_000_000)
	testnetGenesisDifficulty = big.NewInt(4_000_000)

	simnetMinimumDifficulty = big.NewInt(1_000)
	simnetGenesisDifficulty = big.NewInt(1_000)
)

const (
	defaultExpDiffPeriod       = 66_000_000
	defaultMaxForkDepth        = 64
	defaultMaxPendingPerSource = 32
	defaultMetricInterval      = 50_000
	defaultFreshnessWindow     = 10 * time.Minute
)

// ThresholdRange bounds the distance threshold a work set may require.
// Base applies at the minimum difficulty and Ceiling is approached as
// difficulty grows. Both are in parts per billion.
type ThresholdRange struct {
	Base    uint64
	Ceiling uint64
}

// Cosine distances of unrelated hex digests cluster just under 0.1
var defaultThresholds = map[externalapi.DistanceAlgorithm]ThresholdRange{
	externalapi.DistanceAlgorithmCosine:      {Base: 80_000_000, Ceiling: 130_000_000},
	externalapi.DistanceAlgorithmJaroWinkler: {Base: 200_000_000, Ceiling: 300_000_000},
}

// Params defines an anchord network by its parameters. These parameters may be
// used by anchord applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Sources are the reference chains every work set must reference
	Sources []externalapi.SourceID

	// GenesisHash is the hash of the root entry of the multiverse
	GenesisHash *externalapi.DomainHash

	// GenesisTimestamp is the block time of the root entry in unix seconds
	GenesisTimestamp int64

	// GenesisDifficulty is the combined difficulty of the root entry
	GenesisDifficulty *big.Int

	// MinimumDifficulty is the floor every difficulty is clamped to
	MinimumDifficulty *big.Int

	// MaxDifficulty is the value above which difficulty arithmetic
	// is treated as overflowed
	MaxDifficulty *big.Int

	// SingularityHeight is the height from which the exponential
	// difficulty bonus applies
	SingularityHeight uint64

	// ExpDiffPeriod is the number of blocks per exponential difficulty period
	ExpDiffPeriod uint64

	// Handicap is added to every difficulty adjustment factor
	Handicap int64

	// DistanceAlgorithm is the metric miners score nonces with
	DistanceAlgorithm externalapi.DistanceAlgorithm

	// Gating selects per-source or aggregate threshold checks
	Gating externalapi.GatingMode

	// DistanceThresholds bound the distance threshold per algorithm
	DistanceThresholds map[externalapi.DistanceAlgorithm]ThresholdRange

	// FreshnessWindow is how old the latest record of a source may get
	// before work set emission holds
	FreshnessWindow time.Duration

	// MaxForkDepth is how far below the canonical head a branch may
	// diverge before it is pruned
	MaxForkDepth uint64

	// MaxPendingPerSource bounds the queue of alternate records per source
	MaxPendingPerSource int

	// MetricInterval is the number of search iterations between two
	// worker metric reports
	MetricInterval uint64
}

// ThresholdRange returns the threshold range of the configured algorithm
func (p *Params) ThresholdRange() ThresholdRange {
	return p.DistanceThresholds[p.DistanceAlgorithm]
}

// Validate returns an error if the params can't drive a node
func (p *Params) Validate() error {
	if len(p.Sources) == 0 {
		return errors.Errorf("%s: no sources configured", p.Name)
	}
	seen := make(map[externalapi.SourceID]struct{}, len(p.Sources))
	for _, sourceID := range p.Sources {
		if !sourceID.IsValid() {
			return errors.Errorf("%s: invalid source id %q", p.Name, sourceID)
		}
		if _, ok := seen[sourceID]; ok {
			return errors.Errorf("%s: source %s is configured twice", p.Name, sourceID)
		}
		seen[sourceID] = struct{}{}
	}
	if p.MinimumDifficulty == nil || p.MinimumDifficulty.Sign() <= 0 {
		return errors.Errorf("%s: minimum difficulty must be positive", p.Name)
	}
	if p.GenesisDifficulty == nil || p.GenesisDifficulty.Cmp(p.MinimumDifficulty) < 0 {
		return errors.Errorf("%s: genesis difficulty must not be below the minimum", p.Name)
	}
	if p.MaxDifficulty == nil || p.MaxDifficulty.Cmp(p.GenesisDifficulty) < 0 {
		return errors.Errorf("%s: max difficulty must not be below the genesis difficulty", p.Name)
	}
	if p.ExpDiffPeriod == 0 {
		return errors.Errorf("%s: exponential difficulty period must be positive", p.Name)
	}
	thresholds, ok := p.DistanceThresholds[p.DistanceAlgorithm]
	if !ok {
		return errors.Errorf("%s: no threshold range for %s", p.Name, p.DistanceAlgorithm)
	}
	if thresholds.Base > thresholds.Ceiling || thresholds.Ceiling > externalapi.MaxDistance {
		return errors.Errorf("%s: invalid threshold range %d..%d", p.Name, thresholds.Base, thresholds.Ceiling)
	}
	if p.MaxPendingPerSource <= 0 {
		return errors.Errorf("%s: max pending records per source must be positive", p.Name)
	}
	if p.MetricInterval == 0 {
		return errors.Errorf("%s: metric interval must be positive", p.Name)
	}
	return nil
}

// Clone returns a deep copy of the params that can be tuned without
// affecting p
func (p *Params) Clone() *Params {
	clone := *p
	clone.Sources = append([]externalapi.SourceID(nil), p.Sources...)
	clone.GenesisDifficulty = cloneBig(p.GenesisDifficulty)
	clone.MinimumDifficulty = cloneBig(p.MinimumDifficulty)
	clone.MaxDifficulty = cloneBig(p.MaxDifficulty)
	clone.DistanceThresholds = make(map[externalapi.DistanceAlgorithm]ThresholdRange, len(p.DistanceThresholds))
	for algorithm, thresholdRange := range p.DistanceThresholds {
		clone.DistanceThresholds[algorithm] = thresholdRange
	}
	return &clone
}

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

func copyThresholds() map[externalapi.DistanceAlgorithm]ThresholdRange {
	thresholds := make(map[externalapi.DistanceAlgorithm]ThresholdRange, len(defaultThresholds))
	for algorithm, thresholdRange := range defaultThresholds {
		thresholds[algorithm] = thresholdRange
	}
	return thresholds
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:                "anchord-mainnet",
	Sources:             []externalapi.SourceID{"btc", "eth", "lsk", "neo", "wav"},
	GenesisHash:         genesisHash,
	GenesisTimestamp:    1_760_000_000,
	GenesisDifficulty:   mainnetGenesisDifficulty,
	MinimumDifficulty:   mainnetMinimumDifficulty,
	MaxDifficulty:       maxDifficulty,
	SingularityHeight:   0,
	ExpDiffPeriod:       defaultExpDiffPeriod,
	Handicap:            0,
	DistanceAlgorithm:   externalapi.DistanceAlgorithmCosine,
	Gating:              externalapi.GatingPerSource,
	DistanceThresholds:  copyThresholds(),
	FreshnessWindow:     defaultFreshnessWindow,
	MaxForkDepth:        defaultMaxForkDepth,
	MaxPendingPerSource: defaultMaxPendingPerSource,
	MetricInterval:      defaultMetricInterval,
}

// TestnetParams defines the network parameters for the test network.
var TestnetParams = Params{
	Name:                "anchord-testnet",
	Sources:             []externalapi.SourceID{"btc", "eth", "lsk", "neo", "wav"},
	GenesisHash:         testnetGenesisHash,
	GenesisTimestamp:    1_760_000_000,
	GenesisDifficulty:   testnetGenesisDifficulty,
	MinimumDifficulty:   testnetMinimumDifficulty,
	MaxDifficulty:       maxDifficulty,
	SingularityHeight:   0,
	ExpDiffPeriod:       defaultExpDiffPeriod,
	Handicap:            0,
	DistanceAlgorithm:   externalapi.DistanceAlgorithmJaroWinkler,
	Gating:              externalapi.GatingPerSource,
	DistanceThresholds:  copyThresholds(),
	FreshnessWindow:     defaultFreshnessWindow,
	MaxForkDepth:        defaultMaxForkDepth,
	MaxPendingPerSource: defaultMaxPendingPerSource,
	MetricInterval:      defaultMetricInterval,
}

// SimnetParams defines the network parameters for the simulation test network.
// Its tiny difficulties let a single machine mine in seconds.
var SimnetParams = Params{
	Name:                "anchord-simnet",
	Sources:             []externalapi.SourceID{"sima", "simb", "simc"},
	GenesisHash:         simnetGenesisHash,
	GenesisTimestamp:    1_760_000_000,
	GenesisDifficulty:   simnetGenesisDifficulty,
	MinimumDifficulty:   simnetMinimumDifficulty,
	MaxDifficulty:       maxDifficulty,
	SingularityHeight:   0,
	ExpDiffPeriod:       1_000,
	Handicap:            0,
	DistanceAlgorithm:   externalapi.DistanceAlgorithmJaroWinkler,
	Gating:              externalapi.GatingAggregate,
	DistanceThresholds:  copyThresholds(),
	FreshnessWindow:     time.Minute,
	MaxForkDepth:        16,
	MaxPendingPerSource: 8,
	MetricInterval:      10_000,
}

// DevnetParams defines the network parameters for the development network.
// Devnet params may be overridden from a file.
var DevnetParams = Params{
	Name:                "anchord-devnet",
	Sources:             []externalapi.SourceID{"deva", "devb"},
	GenesisHash:         devnetGenesisHash,
	GenesisTimestamp:    1_760_000_000,
	GenesisDifficulty:   simnetGenesisDifficulty,
	MinimumDifficulty:   simnetMinimumDifficulty,
	MaxDifficulty:       maxDifficulty,
	SingularityHeight:   100,
	ExpDiffPeriod:       1_000,
	Handicap:            0,
	DistanceAlgorithm:   externalapi.DistanceAlgorithmCosine,
	Gating:              externalapi.GatingPerSource,
	DistanceThresholds:  copyThresholds(),
	FreshnessWindow:     time.Minute,
	MaxForkDepth:        16,
	MaxPendingPerSource: 8,
	MetricInterval:      10_000,
}
