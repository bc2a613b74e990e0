// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the runtime knobs loaded once at shell startup from GOSH_*
// environment variables, instead of the ad hoc os.Getenv calls scattered
// through mysh_complete.c's globals.
type Config struct {
	// Debug gates the Runner's zap debug tracing of fork/exec/job-state
	// transitions. User-visible shell output never goes through the logger.
	Debug bool `envconfig:"DEBUG" default:"false"`

	// HistorySize is parsed but unused: the read-loop in cmd/gosh keeps no
	// line history.
	HistorySize int `envconfig:"HISTORY_SIZE" default:"500"`

	// KillTimeout is reserved for a future graceful-shutdown mode that would
	// SIGTERM every remaining background job's process group and escalate to
	// SIGKILL after this long; mysh_complete.c exits without waiting on
	// background jobs at all, so gosh currently does the same and this field
	// is parsed but unused.
	KillTimeout time.Duration `envconfig:"KILL_TIMEOUT" default:"2s"`
}

// LoadConfig reads Config from the environment under the GOSH_ prefix.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("GOSH", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
