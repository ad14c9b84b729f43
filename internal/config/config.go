// Package config loads the coordinator's runtime configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// QueryOptions holds the per-query knobs enumerated in spec §6.5.
type QueryOptions struct {
	QueryTimeoutSecs       int  `mapstructure:"query_timeout_secs"`
	Parallelism            int  `mapstructure:"parallelism"`
	ItemLimit              int  `mapstructure:"item_limit"`
	RequireAllShards       bool `mapstructure:"require_all_shards"`
	TestQuerySerialization bool `mapstructure:"test_query_serialization"`
}

// DefaultQueryOptions returns the defaults named in spec §6.5.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		QueryTimeoutSecs: 30,
		Parallelism:      16,
		ItemLimit:        1000,
	}
}

// Timeout returns QueryTimeoutSecs as a time.Duration.
func (o QueryOptions) Timeout() time.Duration {
	return time.Duration(o.QueryTimeoutSecs) * time.Second
}

// Config is the coordinator process configuration.
type Config struct {
	QueryOptions                 QueryOptions `mapstructure:",squash"`
	ClusterMembershipTimeoutSecs int          `mapstructure:"cluster_membership_timeout_secs"`
	SeedsPath                    string       `mapstructure:"seeds_path"`
	ListenAddr                   string       `mapstructure:"listen_addr"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		QueryOptions:                 DefaultQueryOptions(),
		ClusterMembershipTimeoutSecs: 30,
		SeedsPath:                    "/cluster/seeds",
		ListenAddr:                   ":8080",
	}
}

// Load reads configuration from an optional file plus TSQCOORD_-prefixed
// environment variables, falling back to Default for anything unset.
// Grounded on KartikBazzad-bunbase/pkg/config's env-prefix + viper pattern.
func Load(configFile string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(configFile)
	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return cfg, fmt.Errorf("config: reading %s: %w", configFile, err)
			}
		}
	}

	const prefix = "TSQCOORD_"
	for _, envStr := range os.Environ() {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		propKey := strings.ToLower(strings.TrimPrefix(key, prefix))
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
