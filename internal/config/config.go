// Package config loads the CLI's YAML configuration with viper, the way
// the rest of this codebase's ancestry configures its storage and server
// layers.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Storage struct {
		Dir            string `mapstructure:"dir"`
		Base           string `mapstructure:"base"`
		BufferCapacity int    `mapstructure:"buffer_capacity"`
	} `mapstructure:"storage"`

	Relation struct {
		Name           string `mapstructure:"name"`
		RecordLen      int    `mapstructure:"record_len"`
		AttrByteOffset int32  `mapstructure:"attr_byte_offset"`
	} `mapstructure:"relation"`

	Debug bool `mapstructure:"debug"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Storage.Dir = "./data"
	cfg.Storage.Base = "relation.db"
	cfg.Storage.BufferCapacity = 128
	cfg.Relation.Name = "relation"
	cfg.Relation.RecordLen = 16
	cfg.Relation.AttrByteOffset = 0
	return cfg
}

// Load reads a YAML file at path, falling back to Default() values for any
// key the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
