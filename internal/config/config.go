// Package config loads the mitigator configuration from an HCL file.
//
// Every setting is optional. The string "default" (case-insensitive) is a
// sentinel meaning "compute automatically"; any other value is taken as a
// literal override. Address overrides must be syntactically valid IPv4
// dotted quads, but are deliberately NOT checked against live hosts: an
// operator who pins an address owns the collision risk.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultSentinel is the config value meaning "compute automatically".
const DefaultSentinel = "default"

// ErrInvalidAddress is returned when an address override fails IPv4
// syntax validation. This is fatal: a typo must never silently fall back
// to random allocation.
var ErrInvalidAddress = errors.New("invalid IPv4 address in configuration")

// Config holds the operator-tunable settings.
type Config struct {
	// Adapter pins the physical adapter instead of detect/select.
	Adapter string `hcl:"adapter,optional"`

	// HostAddress pins the host companion interface address.
	HostAddress string `hcl:"host_address,optional"`

	// WorkloadAddress pins the address the workload gets on the
	// isolated network.
	WorkloadAddress string `hcl:"workload_address,optional"`
}

// Default returns a Config with every field set to the sentinel.
func Default() *Config {
	return &Config{
		Adapter:         DefaultSentinel,
		HostAddress:     DefaultSentinel,
		WorkloadAddress: DefaultSentinel,
	}
}

// Load reads the config file at path. A missing file is not an error:
// it yields all defaults, matching a fresh install.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes config from bytes (tests and embedded use).
func Parse(filename string, data []byte) (*Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, data, nil, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Adapter = normalizeValue(c.Adapter)
	c.HostAddress = normalizeValue(c.HostAddress)
	c.WorkloadAddress = normalizeValue(c.WorkloadAddress)
}

func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, DefaultSentinel) {
		return DefaultSentinel
	}
	return v
}

// Validate checks that literal address overrides are well-formed IPv4.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"host_address":     c.HostAddress,
		"workload_address": c.WorkloadAddress,
	} {
		if v == DefaultSentinel {
			continue
		}
		if !IsIPv4(v) {
			return fmt.Errorf("%w: %s = %q", ErrInvalidAddress, name, v)
		}
	}
	return nil
}

// AdapterOverride returns the pinned adapter name, if any.
func (c *Config) AdapterOverride() (string, bool) {
	return override(c.Adapter)
}

// HostAddressOverride returns the pinned host-side address, if any.
func (c *Config) HostAddressOverride() (string, bool) {
	return override(c.HostAddress)
}

// WorkloadAddressOverride returns the pinned workload-side address, if any.
func (c *Config) WorkloadAddressOverride() (string, bool) {
	return override(c.WorkloadAddress)
}

func override(v string) (string, bool) {
	if v == DefaultSentinel {
		return "", false
	}
	return v, true
}

// IsIPv4 reports whether s is a syntactically valid dotted-quad IPv4
// address. The dot count check rejects shorthand forms like "10.0.1"
// that some parsers expand.
func IsIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
