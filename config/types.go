package config

// ServerConfig contains the renderer-facing HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// SourceConfig describes the remote telemetry source and the session window
type SourceConfig struct {
	Kind                string `yaml:"kind" validate:"omitempty,oneof=openf1 gtfsrt"`
	BaseURL             string `yaml:"baseURL" validate:"omitempty,url"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	SessionKey          string `yaml:"sessionKey"`
	WindowStart         string `yaml:"windowStart"`
	WindowEnd           string `yaml:"windowEnd"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
}

// PlaybackConfig contains fetch batching and timer configuration
type PlaybackConfig struct {
	Participants        []int `yaml:"participants" validate:"dive,gt=0"` // empty = every participant in the table
	BatchSize           int   `yaml:"batchSize" validate:"gte=0"`
	PerParticipantLimit int   `yaml:"perParticipantLimit" validate:"gte=0"`
	TickMS              int   `yaml:"tickMS" validate:"gte=0"`
	FrameMS             int   `yaml:"frameMS" validate:"gte=0"`
	RefillDelayMS       int   `yaml:"refillDelayMS" validate:"gte=0"`
}

// DataConfig points at the static participant and marker tables
type DataConfig struct {
	ParticipantsPath string `yaml:"participantsPath"`
	MarkersPath      string `yaml:"markersPath"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Playback PlaybackConfig `yaml:"playback"`
	Data     DataConfig     `yaml:"data"`
}
