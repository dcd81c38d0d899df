package models

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type BreakerConfig struct {
	TimeoutSeconds           int `yaml:"timeout_seconds"`
	ResetTimeoutSeconds      int `yaml:"reset_timeout_seconds"`
	RollingWindowSeconds     int `yaml:"rolling_window_seconds"`
	ErrorThresholdPercentage int `yaml:"error_threshold_percentage"`
	VolumeThreshold          int `yaml:"volume_threshold"`
}

func (b BreakerConfig) Timeout() time.Duration       { return time.Duration(b.TimeoutSeconds) * time.Second }
func (b BreakerConfig) ResetTimeout() time.Duration  { return time.Duration(b.ResetTimeoutSeconds) * time.Second }
func (b BreakerConfig) RollingWindow() time.Duration { return time.Duration(b.RollingWindowSeconds) * time.Second }

type Config struct {
	ServerAddr        string        `yaml:"server_addr"`
	PublicBaseURL     string        `yaml:"public_base_url"`
	DatabaseURL       string        `yaml:"database_url"`
	KafkaBroker       string        `yaml:"kafka_broker"`
	KafkaTopic        string        `yaml:"kafka_topic"`
	JWTSecret         string        `yaml:"jwt_secret"`
	AlbumKeyHex       string        `yaml:"album_key_hex"`
	ShareLinkTTLHours int           `yaml:"share_link_ttl_hours"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.ShareLinkTTLHours == 0 {
		cfg.ShareLinkTTLHours = 168 // 7 days
	}
	return &cfg, nil
}

// AlbumKey decodes the AES-256 key used for album id encryption.
func (c *Config) AlbumKey() ([]byte, error) {
	key, err := hex.DecodeString(c.AlbumKeyHex)
	if err != nil {
		return nil, fmt.Errorf("config.AlbumKey: %v", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config.AlbumKey: expected 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) ShareLinkTTL() time.Duration {
	return time.Duration(c.ShareLinkTTLHours) * time.Hour
}
