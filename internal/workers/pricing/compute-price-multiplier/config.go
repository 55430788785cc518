// internal/workers/pricing/compute-price-multiplier/config.go
package computepricemultiplier

import "time"

type Config struct {
	Timeout  time.Duration
	Location *time.Location
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  10 * time.Second,
		Location: time.UTC,
	}
}
