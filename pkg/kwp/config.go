package kwp

import "time"

// Config holds the connection parameters for a K-line interface
type Config struct {
	// Link is a serial device path (/dev/ttyUSB0, file:///dev/ttyUSB0)
	// or a network serial bridge (socket://host:port, tcp://host:port)
	Link string

	// Baud is the line speed after wakeup, typically 10400 or 9600
	Baud int

	// ReadTimeout bounds every single byte read
	ReadTimeout time.Duration
}

const (
	defaultBaud        = 10400
	defaultReadTimeout = 5 * time.Second
)

// DefaultConfig returns a configuration for the given link with the usual KW1281 settings
func DefaultConfig(link string) *Config {
	return &Config{
		Link:        link,
		Baud:        defaultBaud,
		ReadTimeout: defaultReadTimeout,
	}
}
