package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anchorchain/anchord/infrastructure/config"
	"github.com/anchorchain/anchord/infrastructure/db/database"
	"github.com/anchorchain/anchord/infrastructure/db/database/ldb"
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/infrastructure/os/signal"
	"github.com/anchorchain/anchord/util/panics"
	"github.com/anchorchain/anchord/util/profiling"
	"github.com/anchorchain/anchord/version"
)

const (
	leveldbCacheSizeMiB = 64
	defaultDataDirname  = "multiverse"
	shutdownTimeout     = 2 * time.Minute
)

type anchordApp struct {
	cfg *config.Config
}

// StartApp starts the anchord app, and blocks until it finishes running
func StartApp() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		return err
	}
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	app := &anchordApp{cfg: cfg}
	return app.main(nil)
}

func (app *anchordApp) main(startedChan chan<- struct{}) error {
	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem.
	interrupt := signal.InterruptListener()

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if app.cfg.Profile != "" {
		profiling.Start(app.cfg.Profile, log)
	}

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	if app.cfg.ResetDatabase {
		err := removeDatabase(app.cfg)
		if err != nil {
			log.Errorf("%+v", err)
			return err
		}
	}

	// Open the database
	databaseContext, err := openDB(app.cfg)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := databaseContext.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	// Create componentManager and start it.
	componentManager, err := NewComponentManager(app.cfg, databaseContext)
	if err != nil {
		log.Errorf("Unable to start anchord: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down anchord...")

		shutdownDone := make(chan struct{})
		spawn("app.main-componentManager.Stop", func() {
			componentManager.Stop()
			close(shutdownDone)
		})

		select {
		case <-shutdownDone:
		case <-time.After(shutdownTimeout):
			log.Criticalf("Graceful shutdown timed out %s. Terminating...", shutdownTimeout)
		}
		log.Infof("Anchord shutdown complete")
	}()

	componentManager.Start()

	if startedChan != nil {
		startedChan <- struct{}{}
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interrupt
	return nil
}

// databasePath returns the path to the multiverse database
func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.AppDir, defaultDataDirname)
}

func removeDatabase(cfg *config.Config) error {
	dbPath := databasePath(cfg)
	log.Warnf("Resetting the multiverse database at '%s'", dbPath)
	return os.RemoveAll(dbPath)
}

func openDB(cfg *config.Config) (database.Database, error) {
	dbPath := databasePath(cfg)

	err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading database from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath, leveldbCacheSizeMiB)
	if err != nil {
		return nil, err
	}

	err = createDatabaseVersionFile(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
