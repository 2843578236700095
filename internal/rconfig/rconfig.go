// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rconfig loads the reactive engine's configuration from an HCL
// file (Load) or a YAML file (LoadYAML).
package rconfig

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"grimm.is/reactived/internal/rerrors"
)

// Config is the reactive engine's tunable surface. Zero value is invalid;
// use Default or Load.
type Config struct {
	TableID uint8 `hcl:"table_id,optional" yaml:"table_id"`

	PriorityLow  uint32 `hcl:"priority_low,optional" yaml:"priority_low"`
	PriorityHigh uint32 `hcl:"priority_high,optional" yaml:"priority_high"`

	InvalidateOnLinkChange bool `hcl:"invalidate_on_link_change,optional" yaml:"invalidate_on_link_change"`

	MissInspectBytes uint16 `hcl:"miss_inspect_bytes,optional" yaml:"miss_inspect_bytes"`

	MaxRetriesOnPriorityExceeded int `hcl:"max_retries_on_priority_exceeded,optional" yaml:"max_retries_on_priority_exceeded"`

	MetricsAddr string `hcl:"metrics_addr,optional" yaml:"metrics_addr"`
	APIAddr     string `hcl:"api_addr,optional" yaml:"api_addr"`

	ListenAddr        string `hcl:"listen_addr,optional" yaml:"listen_addr"`
	MaxSwitchConns    int    `hcl:"max_switch_conns,optional" yaml:"max_switch_conns"`
	ResyncConcurrency int    `hcl:"resync_concurrency,optional" yaml:"resync_concurrency"`
}

// Default returns the configuration this engine runs with when no file is
// supplied: table 0, the full non-reserved priority band, invalidate on
// link change, 128-byte table-miss copies, one rebalance retry, metrics
// off.
func Default() *Config {
	return &Config{
		TableID:                      0,
		PriorityLow:                  1,
		PriorityHigh:                 65534,
		InvalidateOnLinkChange:       true,
		MissInspectBytes:             128,
		MaxRetriesOnPriorityExceeded: 1,
		MetricsAddr:                  "",
		APIAddr:                      ":8081",
		ListenAddr:                   ":6653",
		MaxSwitchConns:               256,
		ResyncConcurrency:            8,
	}
}

// Load reads and decodes an HCL config file at path, filling in defaults
// for every field the file leaves unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrapf(err, rerrors.KindInternal, "rconfig: read %s", path)
	}
	if err := hclsimple.Decode(path, data, nil, cfg); err != nil {
		return nil, rerrors.Wrapf(err, rerrors.KindMalformed, "rconfig: decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML reads and decodes a YAML config file at path, the alternate
// loader for deployments that keep their configuration alongside other
// YAML-based infrastructure rather than HCL.
func LoadYAML(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrapf(err, rerrors.KindInternal, "rconfig: read %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, rerrors.Wrapf(err, rerrors.KindMalformed, "rconfig: decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports whether cfg's fields form a usable priority band and
// retry budget.
func (c *Config) Validate() error {
	if c.PriorityLow == 0 {
		return rerrors.New(rerrors.KindMalformed, "rconfig: priority_low must be >= 1 (0 is OpenFlow's reserved minimum)")
	}
	if c.PriorityHigh <= c.PriorityLow+1 {
		return rerrors.Errorf(rerrors.KindMalformed, "rconfig: priority_high (%d) leaves no room above priority_low (%d)", c.PriorityHigh, c.PriorityLow)
	}
	if c.PriorityHigh > 0xffff {
		return rerrors.Errorf(rerrors.KindMalformed, "rconfig: priority_high (%d) exceeds a 16-bit priority field", c.PriorityHigh)
	}
	if c.MaxRetriesOnPriorityExceeded < 0 {
		return rerrors.New(rerrors.KindMalformed, "rconfig: max_retries_on_priority_exceeded must be >= 0")
	}
	return nil
}
