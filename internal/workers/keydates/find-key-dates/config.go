// internal/workers/keydates/find-key-dates/config.go
package findkeydates

import "time"

type Config struct {
	// Timeout bounds the whole job, including persistence.
	Timeout time.Duration
	Persist bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
		Persist: true,
	}
}
