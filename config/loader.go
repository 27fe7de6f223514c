package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

// Defaults
const (
	DefaultPort                = 8080
	DefaultSourceKind          = "openf1"
	DefaultBaseURL             = "https://api.openf1.org/v1"
	DefaultSessionKey          = "9149"
	DefaultWindowStart         = "2023-08-27T12:58:56.200"
	DefaultWindowEnd           = "2023-08-27T13:20:54.300"
	DefaultTimeoutMS           = 10000
	DefaultBatchSize           = 3
	DefaultPerParticipantLimit = 120
	DefaultTickMS              = 10
	DefaultFrameMS             = 100
	DefaultRefillDelayMS       = 334
	DefaultParticipantsPath    = "data/participants.yml"
	DefaultMarkersPath         = "data/markers.yml"
)

// Config is the global application configuration
var Config AppConfig

// LoadAppConfig loads and validates the application configuration from config.yml
func LoadAppConfig() error {
	paths := []string{"config.yml", "./config/config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}
	cfg, err := ParseAppConfig(data)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// LoadAppConfigFrom loads and validates the configuration at path
func LoadAppConfigFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, err := ParseAppConfig(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	Config = cfg
	return nil
}

// ParseAppConfig decodes, validates and defaults a YAML configuration document
func ParseAppConfig(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.applyDefaults()
	if _, _, err := cfg.Source.Window(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	s := &c.Source
	if s.Kind == "" {
		s.Kind = DefaultSourceKind
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	// the session defaults describe the recorded OpenF1 race; a live feed
	// keeps whatever window it was given, open by default
	if s.Kind == DefaultSourceKind {
		if s.SessionKey == "" {
			s.SessionKey = DefaultSessionKey
		}
		if s.WindowStart == "" {
			s.WindowStart = DefaultWindowStart
		}
		if s.WindowEnd == "" {
			s.WindowEnd = DefaultWindowEnd
		}
	}
	if s.TimeoutMS == 0 {
		s.TimeoutMS = DefaultTimeoutMS
	}
	p := &c.Playback
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.PerParticipantLimit == 0 {
		p.PerParticipantLimit = DefaultPerParticipantLimit
	}
	if p.TickMS == 0 {
		p.TickMS = DefaultTickMS
	}
	if p.FrameMS == 0 {
		p.FrameMS = DefaultFrameMS
	}
	if p.RefillDelayMS == 0 {
		p.RefillDelayMS = DefaultRefillDelayMS
	}
	if c.Data.ParticipantsPath == "" {
		c.Data.ParticipantsPath = DefaultParticipantsPath
	}
	if c.Data.MarkersPath == "" {
		c.Data.MarkersPath = DefaultMarkersPath
	}
}

// Window parses the configured session window. An empty bound is returned
// as the zero time, meaning unbounded on that side.
func (s SourceConfig) Window() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if s.WindowStart != "" {
		if start, err = utils.ParseTimestamp(s.WindowStart); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("windowStart: %w", err)
		}
	}
	if s.WindowEnd != "" {
		if end, err = utils.ParseTimestamp(s.WindowEnd); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("windowEnd: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("windowEnd %s is not after windowStart %s", s.WindowEnd, s.WindowStart)
	}
	return start, end, nil
}

// Timeout returns the source request timeout
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// TickInterval returns the session clock tick period
func (p PlaybackConfig) TickInterval() time.Duration {
	return time.Duration(p.TickMS) * time.Millisecond
}

// FrameInterval returns the frame advance period
func (p PlaybackConfig) FrameInterval() time.Duration {
	return time.Duration(p.FrameMS) * time.Millisecond
}

// RefillDelay returns the pause before each background refill
func (p PlaybackConfig) RefillDelay() time.Duration {
	return time.Duration(p.RefillDelayMS) * time.Millisecond
}
