package config

import (
	"flag"
	"os"
	"time"
)

// ParseFlags parses all client configuration flags.
//
// Flags:
//
//	-base-url API origin, e.g. https://api.woodshed.example
//	-d local database path
//	-c/-config json file path with configs
//	-request-timeout outbound request timeout (e.g., "15s")
//	-refresh-timeout token refresh timeout (e.g., "10s")
//	-sync-interval background drain interval (e.g., "5m")
//	-probe-interval connectivity probe interval (e.g., "30s")
func ParseFlags() *ClientConfig {
	return parseFlags(os.Args[1:])
}

// parseFlags is split out with an explicit argument slice so tests can
// exercise flag parsing without touching the process-wide flag set.
func parseFlags(args []string) *ClientConfig {
	var baseURL string
	var databaseDSN string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var refreshTimeout time.Duration
	var syncInterval time.Duration
	var probeInterval time.Duration

	fs := flag.NewFlagSet("woodshed-client", flag.ContinueOnError)
	fs.StringVar(&baseURL, "base-url", "", "API origin, e.g. https://api.woodshed.example")
	fs.StringVar(&databaseDSN, "d", "", "Local database path")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Outbound request timeout (e.g., 15s)")
	fs.DurationVar(&refreshTimeout, "refresh-timeout", 0, "Token refresh timeout (e.g., 10s)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Background drain interval (e.g., 5m)")
	fs.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe interval (e.g., 30s)")

	_ = fs.Parse(args)

	return &ClientConfig{
		Adapter: Adapter{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
			RefreshTimeout: refreshTimeout,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Workers: Workers{
			SyncInterval:  syncInterval,
			ProbeInterval: probeInterval,
		},
		JSONFilePath: jsonConfigPath,
	}
}
