package observability

import "fmt"

// Config wires tracing and metrics for the router process.
type Config struct {
	Tracing TracerConfig  `yaml:"tracing" json:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.Tracing.ExporterType == "" {
		c.Tracing.ExporterType = ExporterOTLP
	}
	if c.Tracing.EndpointURL == "" {
		c.Tracing.EndpointURL = "localhost:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
}

func (c *Config) Validate() error {
	if !c.Tracing.Enabled {
		return nil
	}
	switch c.Tracing.ExporterType {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid tracing exporter_type %q (valid: otlp, stdout)", c.Tracing.ExporterType)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling_rate must be in [0,1], got %v", c.Tracing.SamplingRate)
	}
	return nil
}
