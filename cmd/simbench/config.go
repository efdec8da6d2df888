package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DatasetConfig describes one synthetic clustered dataset.
type DatasetConfig struct {
	Name     string  `mapstructure:"name"`
	Classes  int     `mapstructure:"classes"`
	PerClass int     `mapstructure:"per_class"`
	Dim      int     `mapstructure:"dim"`
	Spread   float32 `mapstructure:"spread"`
}

// Config holds the full benchmark configuration.
type Config struct {
	Output    string          `mapstructure:"output"`
	Version   string          `mapstructure:"version"`
	Seed      int64           `mapstructure:"seed"`
	Metrics   []string        `mapstructure:"metrics"`
	Ks        []int           `mapstructure:"ks"`
	DDBTable  string          `mapstructure:"ddb_table"`
	LogLevel  string          `mapstructure:"log_level"`
	Snapshots bool            `mapstructure:"snapshots"`
	Datasets  []DatasetConfig `mapstructure:"datasets"`
}

func init() {
	// Bind command-line flags
	pflag.String("config", "", "Path to the configuration file")
	pflag.String("output", "./benchmark_results", "Root directory for benchmark results")
	pflag.String("version", "v1", "Benchmark version, used as results subdirectory")
	pflag.Int64("seed", 42, "RNG seed for dataset generation")
	pflag.String("ddb-table", "", "Optional DynamoDB table to publish run records to")
	pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	pflag.Bool("snapshots", true, "Save a table snapshot per run")

	f := pflag.CommandLine
	normalizeFunc := f.GetNormalizeFunc()
	f.SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		result := normalizeFunc(fs, name)
		name = strings.ReplaceAll(string(result), "-", "_")
		return pflag.NormalizedName(name)
	})
}

// LoadConfig merges defaults, an optional config file, environment variables
// and command-line flags.
func LoadConfig() (Config, error) {
	viper.SetDefault("output", "./benchmark_results")
	viper.SetDefault("version", "v1")
	viper.SetDefault("seed", 42)
	viper.SetDefault("metrics", []string{"l2", "cosine"})
	viper.SetDefault("ks", []int{1, 5, 10})
	viper.SetDefault("log_level", "info")
	viper.SetDefault("snapshots", true)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return Config{}, err
	}

	viper.SetEnvPrefix("simbench")
	viper.AutomaticEnv()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		viper.SetConfigName("simbench")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		// Missing default config file is fine; flags and defaults apply.
		_ = viper.ReadInConfig()
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(cfg.Datasets) == 0 {
		cfg.Datasets = defaultDatasets()
	}
	if len(cfg.Ks) == 0 {
		return Config{}, fmt.Errorf("ks must not be empty")
	}
	return cfg, nil
}

func defaultDatasets() []DatasetConfig {
	return []DatasetConfig{
		{Name: "clusters10_tight", Classes: 10, PerClass: 200, Dim: 64, Spread: 0.05},
		{Name: "clusters10_loose", Classes: 10, PerClass: 200, Dim: 64, Spread: 0.2},
		{Name: "clusters50", Classes: 50, PerClass: 100, Dim: 128, Spread: 0.1},
	}
}
