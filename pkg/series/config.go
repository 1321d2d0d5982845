package series

import "errors"

var (
	// ErrInvalidWindow is returned when the low-activity window is inverted
	ErrInvalidWindow = errors.New("low-activity window start must not exceed end")
	// ErrInvalidThreshold is returned when the kill threshold is not positive
	ErrInvalidThreshold = errors.New("low-activity threshold must be positive")
)

// Config defines correlator configuration
type Config struct {
	// Elapsed-seconds window inside which the low-activity check applies
	LowActivityWindowStart int `yaml:"lowActivityWindowStart" default:"600"`
	LowActivityWindowEnd   int `yaml:"lowActivityWindowEnd" default:"660"`
	// Combined kill count below which a signal is raised
	LowActivityThreshold int `yaml:"lowActivityThreshold" default:"10"`
}

// Validate checks if the correlator configuration is valid
func (c *Config) Validate() error {
	if c.LowActivityWindowStart > c.LowActivityWindowEnd {
		return ErrInvalidWindow
	}

	if c.LowActivityThreshold <= 0 {
		return ErrInvalidThreshold
	}

	return nil
}
