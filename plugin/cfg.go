package plugin

import (
	"fmt"

	"github.com/lcx/keel/config"
)

// FrameworkConfig tunes discovery for a factory: where to scan, how fast,
// and whether to fall back to the signal-based shutdown registrar.
type FrameworkConfig struct {
	// ScanRoots are directory roots walked for plugin manifests.
	ScanRoots []string `mapstructure:"scanroots"`
	// Archives are zip archives scanned for plugin manifests.
	Archives []string `mapstructure:"archives"`
	// ScanRate caps manifest visits per second; 0 disables throttling.
	ScanRate int `mapstructure:"scanrate"`
	// ScanBurst is the token bucket burst for ScanRate.
	ScanBurst int `mapstructure:"scanburst"`
	// ScanFunnel selects leaky bucket pacing for ScanRate instead of the
	// token bucket. Smoother visit spacing, no burst tolerance.
	ScanFunnel bool `mapstructure:"scanfunnel"`
	// SignalShutdown installs the SIGINT/SIGTERM registrar when no
	// registrar was injected.
	SignalShutdown bool `mapstructure:"signalshutdown"`
}

// GetName implements config.Config.
func (c *FrameworkConfig) GetName() string { return "plugin" }

// Validate implements config.Config.
func (c *FrameworkConfig) Validate() error {
	if c.ScanRate < 0 {
		return fmt.Errorf("scanrate %d is negative", c.ScanRate)
	}
	if c.ScanBurst < 0 {
		return fmt.Errorf("scanburst %d is negative", c.ScanBurst)
	}
	return nil
}

var _ config.Config = (*FrameworkConfig)(nil)
