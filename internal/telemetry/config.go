package telemetry

// Config is the telemetry section of the sweep configuration
type Config struct {
	ServiceName    string `yaml:"-" json:"-"`
	ServiceVersion string `yaml:"-" json:"-"`

	Enabled bool `yaml:"enabled" json:"enabled"`

	// Endpoint is "stderr" (the default), "stdout" or a file path
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	SampleRate float64 `yaml:"sampleRate" json:"sampleRate" validate:"gte=0,lte=1"`
}

// DefaultConfig has tracing off and samples every trace once enabled
func DefaultConfig() Config {
	return Config{ServiceName: "sweep", ServiceVersion: "dev", SampleRate: 1.0}
}
