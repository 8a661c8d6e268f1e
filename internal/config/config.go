package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DBPath                 string
	PollInterval           time.Duration
	CommandRetryBackoff    time.Duration
	CommandMaxRetries      int
	SubscriptionBufferSize int
	NATSUrl                string
}

func DefaultConfig() Config {
	return Config{
		DBPath:                 defaultDBPath(),
		PollInterval:           5 * time.Second,
		CommandRetryBackoff:    100 * time.Millisecond,
		CommandMaxRetries:      3,
		SubscriptionBufferSize: 256,
		NATSUrl:                "",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "timersvc.db"
	}
	return filepath.Join(home, ".local", "state", "timersvc", "state.db")
}
