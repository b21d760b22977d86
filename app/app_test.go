package app

import (
	"os"
	"testing"
	"time"

	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/anchorchain/anchord/domain/rover"
	"github.com/anchorchain/anchord/infrastructure/config"
	"github.com/anchorchain/anchord/infrastructure/network/roverfeed"
)

func simnetConfig(t *testing.T, simulate bool, feeds ...config.RoverFeed) *config.Config {
	return &config.Config{
		Flags: &config.Flags{
			AppDir:             t.TempDir(),
			Miners:             1,
			MinerAddress:       "abcd",
			SimulateRovers:     simulate,
			SimulationInterval: time.Second,
			NetworkFlags: config.NetworkFlags{
				Simnet:          true,
				ActiveNetParams: dagconfig.SimnetParams.Clone(),
			},
		},
		RoverFeeds: feeds,
	}
}

func TestSetupRovers(t *testing.T) {
	cfg := simnetConfig(t, true, config.RoverFeed{SourceID: "simb", URL: "ws://127.0.0.1:1/feed"})
	rovers, err := setupRovers(cfg)
	if err != nil {
		t.Fatalf("setupRovers: %s", err)
	}
	if len(rovers) != len(cfg.NetParams().Sources) {
		t.Fatalf("TestSetupRovers: got %d rovers, expected one per source", len(rovers))
	}
	for _, r := range rovers {
		_, isClient := r.(*roverfeed.Client)
		_, isSimulator := r.(*rover.Simulator)
		switch {
		case r.SourceID() == "simb" && !isClient:
			t.Fatalf("TestSetupRovers: simb isn't followed through its feed")
		case r.SourceID() != "simb" && !isSimulator:
			t.Fatalf("TestSetupRovers: %s isn't simulated", r.SourceID())
		}
	}

	rovers, err = setupRovers(simnetConfig(t, false))
	if err != nil {
		t.Fatalf("setupRovers: %s", err)
	}
	if len(rovers) != 0 {
		t.Fatalf("TestSetupRovers: got %d rovers without feeds or simulation", len(rovers))
	}
}

func TestDatabaseVersion(t *testing.T) {
	cfg := simnetConfig(t, false)
	db, err := openDB(cfg)
	if err != nil {
		t.Fatalf("openDB: %s", err)
	}
	err = db.Close()
	if err != nil {
		t.Fatalf("Close: %s", err)
	}

	err = checkDatabaseVersion(databasePath(cfg))
	if err != nil {
		t.Fatalf("TestDatabaseVersion: the database written just now is rejected: %s", err)
	}

	err = os.WriteFile(versionFilePath(databasePath(cfg)), []byte("2"), 0600)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	_, err = openDB(cfg)
	if err == nil {
		t.Fatalf("TestDatabaseVersion: a database of another version was opened")
	}

	err = removeDatabase(cfg)
	if err != nil {
		t.Fatalf("removeDatabase: %s", err)
	}
	db, err = openDB(cfg)
	if err != nil {
		t.Fatalf("TestDatabaseVersion: cannot open a reset database: %s", err)
	}
	db.Close()
}

func TestComponentManagerMines(t *testing.T) {
	cfg := simnetConfig(t, true)
	cfg.Metrics = "127.0.0.1:0"
	params := cfg.NetParams()
	for algorithm := range params.DistanceThresholds {
		params.DistanceThresholds[algorithm] = dagconfig.ThresholdRange{}
	}

	db, err := openDB(cfg)
	if err != nil {
		t.Fatalf("openDB: %s", err)
	}
	defer db.Close()

	componentManager, err := NewComponentManager(cfg, db)
	if err != nil {
		t.Fatalf("NewComponentManager: %s", err)
	}
	componentManager.Start()
	defer componentManager.Stop()

	deadline := time.Now().Add(20 * time.Second)
	for {
		snapshot, err := componentManager.Coordinator().GetMultiverse()
		if err != nil {
			t.Fatalf("GetMultiverse: %s", err)
		}
		if snapshot.Head.Height() >= 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("TestComponentManagerMines: nothing was mined on simulated sources")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
