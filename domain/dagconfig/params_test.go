package dagconfig

import (
	"testing"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

func TestDefaultParamsAreValid(t *testing.T) {
	for _, params := range []*Params{&MainnetParams, &TestnetParams, &SimnetParams, &DevnetParams} {
		err := params.Validate()
		if err != nil {
			t.Fatalf("TestDefaultParamsAreValid: %s: %s", params.Name, err)
		}
	}
}

func TestGenesisHashesAreDistinct(t *testing.T) {
	seen := make(map[externalapi.DomainHash]string)
	for _, params := range []*Params{&MainnetParams, &TestnetParams, &SimnetParams, &DevnetParams} {
		if name, ok := seen[*params.GenesisHash]; ok {
			t.Fatalf("TestGenesisHashesAreDistinct: %s shares its genesis hash with %s", params.Name, name)
		}
		seen[*params.GenesisHash] = params.Name
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(params *Params)
	}{
		{"no sources", func(params *Params) { params.Sources = nil }},
		{"duplicate source", func(params *Params) { params.Sources = []externalapi.SourceID{"btc", "btc"} }},
		{"reserved source", func(params *Params) { params.Sources = []externalapi.SourceID{externalapi.SelfSourceID} }},
		{"zero exp period", func(params *Params) { params.ExpDiffPeriod = 0 }},
		{"inverted thresholds", func(params *Params) {
			params.DistanceThresholds = map[externalapi.DistanceAlgorithm]ThresholdRange{
				params.DistanceAlgorithm: {Base: 10, Ceiling: 5},
			}
		}},
		{"no pending queue", func(params *Params) { params.MaxPendingPerSource = 0 }},
	}

	for _, test := range tests {
		params := SimnetParams
		params.DistanceThresholds = copyThresholds()
		test.mutate(&params)
		if err := params.Validate(); err == nil {
			t.Fatalf("TestValidateRejects: %s: Validate unexpectedly succeeded", test.name)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	clone := SimnetParams.Clone()
	clone.Sources[0] = "other"
	clone.MinimumDifficulty.SetInt64(5)
	clone.DistanceThresholds[clone.DistanceAlgorithm] = ThresholdRange{Base: 1, Ceiling: 2}

	if SimnetParams.Sources[0] == "other" {
		t.Fatalf("TestCloneIsIndependent: the clone shares its sources")
	}
	if SimnetParams.MinimumDifficulty.Int64() == 5 {
		t.Fatalf("TestCloneIsIndependent: the clone shares its minimum difficulty")
	}
	if SimnetParams.ThresholdRange().Base == 1 {
		t.Fatalf("TestCloneIsIndependent: the clone shares its thresholds")
	}
}
