package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/always-cache/relocate/session"

	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	baseFlag           string
	capacityFlag       int
	providerFlag       string
	dbFilenameFlag     string
	cookieFlag         string
	maxAgeFlag         time.Duration
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func main() {
	fs := flag.NewFlagSet("relocate", flag.ExitOnError)
	fs.StringVar(&configFilenameFlag, "config", "", "Path to YAML config file")
	fs.IntVar(&portFlag, "port", 8080, "Port to listen on")
	fs.StringVar(&baseFlag, "base", "", "Site root to redirect to (overrides config)")
	fs.IntVar(&capacityFlag, "capacity", 0, "Locations kept per session (overrides config)")
	fs.StringVar(&providerFlag, "provider", "", "Session provider to use: memory or sqlite (overrides config)")
	fs.StringVar(&dbFilenameFlag, "db", "", "Session DB file name for the sqlite provider (overrides config)")
	fs.StringVar(&cookieFlag, "cookie", "", "Session cookie name (overrides config)")
	fs.DurationVar(&maxAgeFlag, "max-age", 0, "Session lifetime (overrides config)")
	fs.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	fs.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RELOCATE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if version == "" {
		version = "DEV"
	}

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := Config{Rules: defaultRules}
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Str("file", configFilenameFlag).Msg("Could not read config")
		}
		if len(config.Rules) == 0 {
			config.Rules = defaultRules
		}
	}
	overrideConfig(&config)

	if config.Base == "" {
		config.Base = fmt.Sprintf("http://localhost:%d", portFlag)
	}

	// use configured provider, fail if unknown
	var provider session.Provider
	switch config.Session.Provider {
	case "", "memory":
		provider = session.NewMemProvider()
	case "sqlite":
		dbFilename := config.Session.DB
		if dbFilename == "" {
			dbFilename = "sessions.db"
		}
		sqlite, err := session.NewSQLiteProvider(dbFilename)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open session db")
		}
		defer sqlite.Close()
		if config.Session.MaxAge > 0 {
			go purgeSessions(sqlite, config.Session.MaxAge)
		}
		provider = sqlite
	default:
		log.Fatal().Msgf("Unsupported session provider: %s", config.Session.Provider)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := newServer(config, provider, reg, log.Logger)

	log.Info().Msgf("Listening on port %v, redirecting below %s", portFlag, config.Base)
	err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), handler)

	if err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// overrideConfig applies the flags (or environment variables) that were set.
func overrideConfig(config *Config) {
	if baseFlag != "" {
		config.Base = baseFlag
	}
	if capacityFlag > 0 {
		config.Capacity = capacityFlag
	}
	if providerFlag != "" {
		config.Session.Provider = providerFlag
	}
	if dbFilenameFlag != "" {
		config.Session.DB = dbFilenameFlag
	}
	if cookieFlag != "" {
		config.Session.Cookie = cookieFlag
	}
	if maxAgeFlag > 0 {
		config.Session.MaxAge = maxAgeFlag
	}
}

// purgeSessions runs an infinite loop removing sessions
// that were not written to within maxAge.
func purgeSessions(p session.SQLiteProvider, maxAge time.Duration) {
	interval := maxAge / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	log.Info().Msgf("Starting session purge loop with interval %s", interval)
	for {
		n, err := p.PurgeOlderThan(time.Now().Add(-maxAge))
		if err != nil {
			log.Error().Err(err).Msg("Could not purge sessions")
		} else if n > 0 {
			log.Debug().Int64("values", n).Msg("Purged expired sessions")
		}
		time.Sleep(interval)
	}
}
