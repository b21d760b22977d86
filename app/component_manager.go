package app

import (
	"fmt"
	"sync/atomic"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/coordinator"
	"github.com/anchorchain/anchord/domain/rover"
	"github.com/anchorchain/anchord/infrastructure/config"
	infrastructuredatabase "github.com/anchorchain/anchord/infrastructure/db/database"
	"github.com/anchorchain/anchord/infrastructure/metrics"
	"github.com/anchorchain/anchord/infrastructure/network/roverfeed"
	"github.com/anchorchain/anchord/util/panics"
)

// ComponentManager is a wrapper for all the anchord services
type ComponentManager struct {
	cfg           *config.Config
	coordinator   *coordinator.Coordinator
	rovers        []rover.Rover
	metricsServer *metrics.Server

	started, shutdown int32
}

// Start launches all the anchord services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting anchord")

	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	a.coordinator.Start()
	for _, r := range a.rovers {
		err := a.coordinator.AddRover(r)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting rovers: %+v", err))
		}
	}
}

// Stop gracefully shuts down all the anchord services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Anchord is already in the process of shutting down")
		return
	}

	log.Warnf("Anchord shutting down")

	a.coordinator.Stop()

	if a.metricsServer != nil {
		err := a.metricsServer.Stop()
		if err != nil {
			log.Errorf("Error stopping the metrics server: %+v", err)
		}
	}
}

// Coordinator returns the coordinator driving the node
func (a *ComponentManager) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db infrastructuredatabase.Database) (*ComponentManager, error) {
	metricsCollectors := metrics.New()

	nodeCoordinator, err := coordinator.New(&coordinator.Config{
		Params:       cfg.NetParams(),
		MinerAddress: cfg.MinerAddress,
		Workers:      cfg.Miners,
		Database:     db,
		Metrics:      metricsCollectors,
	})
	if err != nil {
		return nil, err
	}

	rovers, err := setupRovers(cfg)
	if err != nil {
		nodeCoordinator.Stop()
		return nil, err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics != "" {
		metricsServer, err = metrics.NewServer(cfg.Metrics, metricsCollectors)
		if err != nil {
			nodeCoordinator.Stop()
			return nil, err
		}
	}

	return &ComponentManager{
		cfg:           cfg,
		coordinator:   nodeCoordinator,
		rovers:        rovers,
		metricsServer: metricsServer,
	}, nil
}

// setupRovers builds a feed client per --rover flag and, when requested,
// a simulator for every remaining source
func setupRovers(cfg *config.Config) ([]rover.Rover, error) {
	followed := make(map[externalapi.SourceID]struct{}, len(cfg.RoverFeeds))
	rovers := make([]rover.Rover, 0, len(cfg.NetParams().Sources))
	for _, feed := range cfg.RoverFeeds {
		client, err := roverfeed.NewClient(&roverfeed.ClientConfig{
			SourceID:  feed.SourceID,
			URL:       feed.URL,
			Proxy:     cfg.Proxy,
			ProxyUser: cfg.ProxyUser,
			ProxyPass: cfg.ProxyPass,
		})
		if err != nil {
			return nil, err
		}
		followed[feed.SourceID] = struct{}{}
		rovers = append(rovers, client)
	}

	for _, sourceID := range cfg.NetParams().Sources {
		if _, ok := followed[sourceID]; ok {
			continue
		}
		if !cfg.SimulateRovers {
			log.Warnf("Source %s has no rover. Mining holds until its records arrive", sourceID)
			continue
		}
		simulator, err := rover.NewSimulator(sourceID, cfg.SimulationInterval)
		if err != nil {
			return nil, err
		}
		log.Infof("Simulating source %s every %s", sourceID, cfg.SimulationInterval)
		rovers = append(rovers, simulator)
	}
	return rovers, nil
}
