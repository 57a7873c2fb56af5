package service

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config is the service configuration. Values come from the environment
// (go-flags env tags); the executable takes no arguments.
type Config struct {
	DataRoot  string `long:"data" env:"STROLL_DATA" default:"./data" description:"Data root holding partition files"`
	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
	CacheSize int    `long:"cache.size" env:"CACHE_SIZE" default:"4096" description:"Maximum response cache entries"`

	// Not environment-tunable; overridden only by tests.
	ToolTimeout time.Duration `hidden:"yes" long:"tool.timeout" description:"Per-tool deadline"`
	ScanTimeout time.Duration `hidden:"yes" long:"scan.timeout" description:"Per-scan deadline"`
	MaxRows     int           `hidden:"yes" long:"max.rows" description:"Per-query row cap"`
	MaxInFlight int           `hidden:"yes" long:"max.inflight" description:"Concurrent request cap"`
}

// DefaultToolTimeout bounds one tool call end to end.
const DefaultToolTimeout = 2 * time.Second

// withDefaults fills unset tuning knobs.
func (c Config) withDefaults() Config {
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	return c
}

// InitLogging configures logrus per the configured level, writing to
// stderr only (stdout is the protocol channel).
func (c Config) InitLogging() error {
	var level, err = log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})
	return nil
}
