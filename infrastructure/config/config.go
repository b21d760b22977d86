package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/version"
	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "anchord.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "anchord.log"
	defaultErrLogFilename = "anchord_err.log"
	defaultMinerAddress   = "00"
	sampleConfigFilename  = "sample-anchord.conf"
)

var (
	// DefaultAppDir is the default home directory for anchord.
	DefaultAppDir = btcutil.AppDataDir("anchord", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultAppDir, defaultDataDirname)
	defaultMiners     = runtime.NumCPU()
)

// Flags defines the configuration options for anchord.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion        bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile         string        `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir             string        `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir             string        `long:"logdir" description:"Directory to log output."`
	DebugLevel         string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Miners             int           `long:"miners" description:"Number of mining workers"`
	MinerAddress       string        `long:"mineraddress" description:"Hex encoded address credited in every mined candidate"`
	Rovers             []string      `long:"rover" description:"Follow the record feed of a source, as <sourceid>=<url> -- May be repeated"`
	SimulateRovers     bool          `long:"simrovers" description:"Simulate every source that has no --rover feed (simnet and devnet only)"`
	SimulationInterval time.Duration `long:"siminterval" description:"How often simulated sources produce a record"`
	Proxy              string        `long:"proxy" description:"Connect to rover feeds via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser          string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass          string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	Profile            string        `long:"profile" description:"Enable HTTP profiling on localhost at the given port -- NOTE port must be between 1024 and 65536"`
	Metrics            string        `long:"metrics" description:"Serve prometheus metrics on the given interface/port (eg. 127.0.0.1:17110)"`
	MaxForkDepth       uint64        `long:"maxforkdepth" description:"How far below the head a fork may diverge before it is pruned -- 0 keeps every fork"`
	Freshness          time.Duration `long:"freshness" description:"How old the latest record of a source may get before mining holds"`
	Gating             string        `long:"gating" description:"How source distances gate candidates {pertarget, aggregate}"`
	Distance           string        `long:"distance" description:"Distance algorithm {cosine, jarowinkler}"`
	MetricInterval     uint64        `long:"metricinterval" description:"Number of nonces a worker tries between metric reports"`
	ResetDatabase      bool          `long:"reset-db" description:"Reset the multiverse database before starting the node"`
	NetworkFlags
}

// RoverFeed is a --rover flag resolved against the active network
type RoverFeed struct {
	SourceID externalapi.SourceID
	URL      string
}

// Config defines the configuration options for anchord.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags
	RoverFeeds []RoverFeed
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:         defaultConfigFile,
		DebugLevel:         defaultLogLevel,
		AppDir:             defaultDataDir,
		Miners:             defaultMiners,
		MinerAddress:       defaultMinerAddress,
		SimulationInterval: 10 * time.Second,
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
func LoadConfig() (*Config, error) {
	cfg, _, err := loadConfig(os.Args[1:])
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in anchord functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func loadConfig(args []string) (*Config, []string, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(cfgFlags, flags.Default)
	if !preCfg.Simnet || preCfg.ConfigFile != defaultConfigFile {
		if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
			err := createDefaultConfigFile(preCfg.ConfigFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating a default config file: %s\n", err)
			}
		}

		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	err = cfg.resolve(parser)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(filepath.Join(cfg.LogDir, defaultLogFilename), filepath.Join(cfg.LogDir, defaultErrLogFilename))

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetLogLevels(cfg.DebugLevel)
	if err != nil {
		err := errors.Errorf("loadConfig: %s", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Warnf("%s", configFileError)
	}

	return cfg, remainingArgs, nil
}

// resolve validates the parsed flags and derives the active network params
// and directories from them. It doesn't touch the file system.
func (cfg *Config) resolve(parser *flags.Parser) error {
	err := cfg.ResolveNetwork(parser)
	if err != nil {
		return err
	}
	params := cfg.NetParams()

	if cfg.Miners <= 0 {
		return errors.Errorf("miners must be positive, got %d", cfg.Miners)
	}
	cfg.MinerAddress = strings.ToLower(strings.TrimPrefix(cfg.MinerAddress, "0x"))
	if cfg.MinerAddress == "" || !externalapi.IsLowerHex(cfg.MinerAddress) {
		return errors.Errorf("mineraddress %q is not hex encoded", cfg.MinerAddress)
	}

	if cfg.MaxForkDepth != 0 {
		params.MaxForkDepth = cfg.MaxForkDepth
	}
	if cfg.Freshness < 0 {
		return errors.Errorf("freshness must not be negative, got %s", cfg.Freshness)
	}
	if cfg.Freshness != 0 {
		params.FreshnessWindow = cfg.Freshness
	}
	if cfg.Gating != "" {
		params.Gating, err = externalapi.ParseGatingMode(cfg.Gating)
		if err != nil {
			return err
		}
	}
	if cfg.Distance != "" {
		params.DistanceAlgorithm, err = externalapi.ParseDistanceAlgorithm(cfg.Distance)
		if err != nil {
			return err
		}
	}
	if cfg.MetricInterval != 0 {
		params.MetricInterval = cfg.MetricInterval
	}
	err = params.Validate()
	if err != nil {
		return err
	}

	cfg.RoverFeeds, err = parseRoverFeeds(cfg.Rovers, params)
	if err != nil {
		return err
	}
	if cfg.SimulateRovers && !cfg.Simnet && !cfg.Devnet {
		return errors.New("simrovers is allowed only when using simnet or devnet")
	}
	if cfg.SimulateRovers && cfg.SimulationInterval <= 0 {
		return errors.Errorf("siminterval must be positive, got %s", cfg.SimulationInterval)
	}

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return errors.New("The profile port must be between 1024 and 65535")
		}
	}

	// Append the network type to the app and log directories so they are
	// "namespaced" per network.
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.AppDir = filepath.Join(cfg.AppDir, params.Name)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	} else {
		cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), params.Name)
	}
	return nil
}

func parseRoverFeeds(rovers []string, params *dagconfig.Params) ([]RoverFeed, error) {
	configured := make(map[externalapi.SourceID]struct{}, len(params.Sources))
	for _, sourceID := range params.Sources {
		configured[sourceID] = struct{}{}
	}

	feeds := make([]RoverFeed, 0, len(rovers))
	seen := make(map[externalapi.SourceID]struct{}, len(rovers))
	for _, rover := range rovers {
		parts := strings.SplitN(rover, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("rover %q is not of the form <sourceid>=<url>", rover)
		}
		sourceID := externalapi.SourceID(strings.TrimSpace(parts[0]))
		if _, ok := configured[sourceID]; !ok {
			return nil, errors.Errorf("rover source %s is not a source of %s", sourceID, params.Name)
		}
		if _, ok := seen[sourceID]; ok {
			return nil, errors.Errorf("rover source %s is given more than once", sourceID)
		}
		seen[sourceID] = struct{}{}
		feeds = append(feeds, RoverFeed{SourceID: sourceID, URL: strings.TrimSpace(parts[1])})
	}
	return feeds, nil
}

// createDefaultConfigFile copies the file sample-anchord.conf to the given
// destination path
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	// We assume sample config file path is same as binary
	path, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return err
	}
	sampleConfigPath := filepath.Join(path, sampleConfigFilename)

	src, err := os.Open(sampleConfigPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	reader := bufio.NewReader(src)
	for err != io.EOF {
		var line string
		line, err = reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}

		if _, err := dest.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}
