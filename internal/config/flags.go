package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagFilter    = flag.String("filter", "", "Brush filter: bilinear or nearest")
	flagPrecision = flag.String("precision", "", "Working precision: float32 or r16")
	flagDB        = flag.String("db", "", "Keep terrain generations in this SQLite database")
	flagLogFile   = flag.String("log", "", "Also write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFilter != "" {
		cfg.Compose.Filter = *flagFilter
	}
	if *flagPrecision != "" {
		cfg.Compose.Precision = *flagPrecision
	}
	if *flagDB != "" {
		cfg.Storage.Backend = BackendSQLite
		cfg.Storage.Path = *flagDB
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
