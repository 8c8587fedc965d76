// Package config provides a reusable loader for samizdat configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"samizdat/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a samizdat node or hub process
// (spec §6's Configuration block). Every field carries a default applied
// before any file or environment override is read.
type Config struct {
	Data                   string  `mapstructure:"data" json:"data"`
	Port                   int     `mapstructure:"port" json:"port"`
	DirectPort             int     `mapstructure:"direct_port" json:"direct_port"`
	ReversePort            int     `mapstructure:"reverse_port" json:"reverse_port"`
	HubHost                string  `mapstructure:"hub_host" json:"hub_host"`
	HubDirectPort          int     `mapstructure:"hub_direct_port" json:"hub_direct_port"`
	HubReversePort         int     `mapstructure:"hub_reverse_port" json:"hub_reverse_port"`
	MaxStorage             int64   `mapstructure:"max_storage" json:"max_storage"`
	MaxContentSize         int64   `mapstructure:"max_content_size" json:"max_content_size"`
	MaxQueriesPerNode      int     `mapstructure:"max_queries_per_node" json:"max_queries_per_node"`
	MaxQueryRatePerNode    float64 `mapstructure:"max_query_rate_per_node" json:"max_query_rate_per_node"`
	MaxResolutionsPerQuery int     `mapstructure:"max_resolutions_per_query" json:"max_resolutions_per_query"`
	MaxCandidates          int     `mapstructure:"max_candidates" json:"max_candidates"`
	MaxParallelHubs        int     `mapstructure:"max_parallel_hubs" json:"max_parallel_hubs"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("data", "./data")
	v.SetDefault("port", 7070)
	v.SetDefault("direct_port", 7071)
	v.SetDefault("reverse_port", 7072)
	v.SetDefault("hub_host", "127.0.0.1")
	v.SetDefault("hub_direct_port", 7071)
	v.SetDefault("hub_reverse_port", 7072)
	v.SetDefault("max_storage", int64(10)<<30)
	v.SetDefault("max_content_size", int64(4)<<30)
	v.SetDefault("max_queries_per_node", 64)
	v.SetDefault("max_query_rate_per_node", 8.0)
	v.SetDefault("max_resolutions_per_query", 16)
	v.SetDefault("max_candidates", 4)
	v.SetDefault("max_parallel_hubs", 4)
	v.SetDefault("logging.level", "info")
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("samizdat")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SAMIZDAT_ENV environment
// variable to pick an environment-specific overlay file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SAMIZDAT_ENV", ""))
}
