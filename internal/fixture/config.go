package fixture

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the fixture-server settings, loadable from flags,
// environment (LSPRESSO_ prefix), or an optional fixture.yml next to
// the binary's working directory.
type Config struct {
	LogLevel       string `mapstructure:"log_level"`
	ProgressCycles int    `mapstructure:"progress_cycles"`
}

// LoadConfig reads the fixture configuration. Missing config file means
// defaults; a malformed one is an error.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("progress_cycles", 1)

	v.SetConfigName("fixture")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("lspresso")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.ProgressCycles < 0 {
		return nil, fmt.Errorf("progress_cycles must not be negative, got %d", config.ProgressCycles)
	}
	return &config, nil
}
