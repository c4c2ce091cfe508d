package monitor

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the ambient settings a deployment tunes independently of
// the compiled spec blob (spec.md §6 "Configuration file" expansion):
// defaults MMPRV falls back to when a formula's CONFIGURE record leaves
// them unset, plus logging verbosity. The blob remains the source of
// truth for per-node arena sizing; nothing here resizes the arena.
type Config struct {
	// DefaultDeadline is the MMPRV deadline used when a predict block's
	// CONFIGURE record set it to zero.
	DefaultDeadline uint32 `toml:"default_deadline"`
	// DefaultKModes is the forecast-branch count used the same way.
	DefaultKModes int `toml:"default_k_modes"`
	// MaxSpeculativeIterations bounds MMPRV's outer loop, one iteration
	// per forecasted time step (spec.md §4.4); zero selects mmprv's own
	// built-in default.
	MaxSpeculativeIterations int `toml:"max_speculative_iterations"`
	// Debug turns on debug-level diagnostics in the wired logx.Logger.
	Debug bool `toml:"debug"`
}

// DefaultConfig returns the configuration a monitor runs with when no
// TOML file is supplied.
func DefaultConfig() Config {
	return Config{
		DefaultDeadline:          4,
		DefaultKModes:            1,
		MaxSpeculativeIterations: 0,
		Debug:                    false,
	}
}

// LoadConfig reads a TOML configuration file, matching the broader
// pack's convention for node/genesis-style configuration
// (`ethereum-go-ethereum`'s go.mod carries BurntSushi/toml for this
// role). Unset fields keep DefaultConfig's values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("monitor: loading config %s: %w", path, err)
	}
	return cfg, nil
}
