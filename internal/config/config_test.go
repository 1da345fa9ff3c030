package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFull(t *testing.T) {
	hclContent := `
adapter          = "eth0"
host_address     = "192.168.1.200"
workload_address = "192.168.1.201"
`
	cfg, err := Parse("test.hcl", []byte(hclContent))
	require.NoError(t, err)

	adapter, ok := cfg.AdapterOverride()
	assert.True(t, ok)
	assert.Equal(t, "eth0", adapter)

	host, ok := cfg.HostAddressOverride()
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.200", host)

	workload, ok := cfg.WorkloadAddressOverride()
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.201", workload)
}

func TestParseSentinels(t *testing.T) {
	tests := []struct {
		name string
		hcl  string
	}{
		{"explicit default", `host_address = "default"`},
		{"mixed case", `host_address = "Default"`},
		{"empty file", ``},
		{"empty value", `host_address = ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse("test.hcl", []byte(tt.hcl))
			require.NoError(t, err)

			_, ok := cfg.HostAddressOverride()
			assert.False(t, ok, "sentinel must not read as an override")
		})
	}
}

func TestParseInvalidAddress(t *testing.T) {
	tests := []struct {
		name string
		hcl  string
	}{
		{"not an address", `host_address = "not-an-ip"`},
		{"too few octets", `host_address = "10.0.1"`},
		{"octet out of range", `workload_address = "10.0.0.256"`},
		{"ipv6", `workload_address = "fe80::1"`},
		{"trailing garbage", `host_address = "10.0.0.1/24"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.hcl", []byte(tt.hcl))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAddress),
				"want ErrInvalidAddress, got %v", err)
		})
	}
}

func TestGatewayOverrideAccepted(t *testing.T) {
	// Pinning the subnet gateway is syntactically valid and accepted
	// as given; collision checking is deliberately skipped for overrides.
	cfg, err := Parse("test.hcl", []byte(`host_address = "10.0.0.1"`))
	require.NoError(t, err)

	host, ok := cfg.HostAddressOverride()
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", host)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	_, ok := cfg.AdapterOverride()
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xivomega.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`adapter = "wlan0"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	adapter, ok := cfg.AdapterOverride()
	assert.True(t, ok)
	assert.Equal(t, "wlan0", adapter)
}

func TestIsIPv4(t *testing.T) {
	valid := []string{"0.0.0.0", "10.0.0.1", "255.255.255.255", "192.168.1.254"}
	for _, s := range valid {
		assert.True(t, IsIPv4(s), s)
	}

	invalid := []string{"", "10.0.1", "10.0.0.0.1", "256.1.1.1", "a.b.c.d", "::1", " 10.0.0.1"}
	for _, s := range invalid {
		assert.False(t, IsIPv4(s), s)
	}
}
