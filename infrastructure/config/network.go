package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet            bool   `long:"testnet" description:"Use the test network"`
	Simnet             bool   `long:"simnet" description:"Use the simulation test network"`
	Devnet             bool   `long:"devnet" description:"Use the development test network"`
	OverrideParamsFile string `long:"override-params-file" description:"Overrides network params (allowed only on devnet)"`

	ActiveNetParams *dagconfig.Params
}

type overrideParamsConfig struct {
	Sources             []string `json:"sources"`
	GenesisTimestamp    *int64   `json:"genesisTimestamp"`
	GenesisDifficulty   *string  `json:"genesisDifficulty"`
	MinimumDifficulty   *string  `json:"minimumDifficulty"`
	SingularityHeight   *uint64  `json:"singularityHeight"`
	ExpDiffPeriod       *uint64  `json:"expDiffPeriod"`
	Handicap            *int64   `json:"handicap"`
	ThresholdBase       *uint64  `json:"thresholdBase"`
	ThresholdCeiling    *uint64  `json:"thresholdCeiling"`
	FreshnessSeconds    *int64   `json:"freshnessSeconds"`
	MaxForkDepth        *uint64  `json:"maxForkDepth"`
	MaxPendingPerSource *int     `json:"maxPendingPerSource"`
}

// ResolveNetwork parses the network command line argument and sets NetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// Default value is main-net.
	selected := &dagconfig.MainnetParams
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		selected = &dagconfig.TestnetParams
	}
	if networkFlags.Simnet {
		numNets++
		selected = &dagconfig.SimnetParams
	}
	if networkFlags.Devnet {
		numNets++
		selected = &dagconfig.DevnetParams
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, simnet, devnet, etc.) cannot be used " +
			"together. Please choose only one network"
		err := errors.Errorf(message)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return err
	}

	// The flags may tune the params, never the package level defaults
	networkFlags.ActiveNetParams = selected.Clone()

	return networkFlags.overrideParams()
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *dagconfig.Params {
	return networkFlags.ActiveNetParams
}

func (networkFlags *NetworkFlags) overrideParams() error {
	if networkFlags.OverrideParamsFile == "" {
		return nil
	}

	if !networkFlags.Devnet {
		return errors.Errorf("override-params-file is allowed only when using devnet")
	}

	overrideParamsFile, err := os.Open(networkFlags.OverrideParamsFile)
	if err != nil {
		return err
	}
	defer overrideParamsFile.Close()

	decoder := json.NewDecoder(overrideParamsFile)
	decoder.DisallowUnknownFields()
	config := &overrideParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "cannot decode %s", networkFlags.OverrideParamsFile)
	}
	return config.apply(networkFlags.ActiveNetParams)
}

func (config *overrideParamsConfig) apply(params *dagconfig.Params) error {
	if config.Sources != nil {
		params.Sources = make([]externalapi.SourceID, len(config.Sources))
		for i, sourceID := range config.Sources {
			params.Sources[i] = externalapi.SourceID(sourceID)
		}
	}

	if config.GenesisTimestamp != nil {
		params.GenesisTimestamp = *config.GenesisTimestamp
	}

	if config.GenesisDifficulty != nil {
		genesisDifficulty, ok := new(big.Int).SetString(*config.GenesisDifficulty, 10)
		if !ok {
			return errors.Errorf("couldn't convert %s to big int", *config.GenesisDifficulty)
		}
		params.GenesisDifficulty = genesisDifficulty
	}

	if config.MinimumDifficulty != nil {
		minimumDifficulty, ok := new(big.Int).SetString(*config.MinimumDifficulty, 10)
		if !ok {
			return errors.Errorf("couldn't convert %s to big int", *config.MinimumDifficulty)
		}
		params.MinimumDifficulty = minimumDifficulty
	}

	if config.SingularityHeight != nil {
		params.SingularityHeight = *config.SingularityHeight
	}

	if config.ExpDiffPeriod != nil {
		params.ExpDiffPeriod = *config.ExpDiffPeriod
	}

	if config.Handicap != nil {
		params.Handicap = *config.Handicap
	}

	if config.ThresholdBase != nil || config.ThresholdCeiling != nil {
		thresholds := params.ThresholdRange()
		if config.ThresholdBase != nil {
			thresholds.Base = *config.ThresholdBase
		}
		if config.ThresholdCeiling != nil {
			thresholds.Ceiling = *config.ThresholdCeiling
		}
		params.DistanceThresholds[params.DistanceAlgorithm] = thresholds
	}

	if config.FreshnessSeconds != nil {
		params.FreshnessWindow = time.Duration(*config.FreshnessSeconds) * time.Second
	}

	if config.MaxForkDepth != nil {
		params.MaxForkDepth = *config.MaxForkDepth
	}

	if config.MaxPendingPerSource != nil {
		params.MaxPendingPerSource = *config.MaxPendingPerSource
	}

	return nil
}
