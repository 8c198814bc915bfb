package config

import (
	"fmt"
	"net/url"
)

// validate checks that the final merged [ClientConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *ClientConfig) validate() error {
	if cfg.Adapter.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidAdapterConfigs)
	}

	u, err := url.Parse(cfg.Adapter.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL must be scheme://host[:port]", ErrInvalidAdapterConfigs)
	}

	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	return nil
}
