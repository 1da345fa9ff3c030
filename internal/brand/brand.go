// Package brand provides centralized naming constants for the mitigator.
// Every external object this tool creates (the podman network, the host
// companion link, the workload container) is named here so the provisioning
// and cleanup paths can never drift apart.
//
// The identity is loaded from brand.json at compile time via go:embed so
// forks can rename the product without touching code.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding and well-known resource names.
type Brand struct {
	Name            string `json:"name"`
	LowerName       string `json:"lowerName"`
	Description     string `json:"description"`
	Tagline         string `json:"tagline"`
	Repository      string `json:"repository"`
	ConfigEnvPrefix string `json:"configEnvPrefix"`
	DefaultConfDir  string `json:"defaultConfigDir"`
	ConfigFileName  string `json:"configFileName"`
	BinaryName      string `json:"binaryName"`

	// Names of the external resources one run provisions.
	ContainerName   string `json:"containerName"`
	NetworkName     string `json:"networkName"`
	HostLinkName    string `json:"hostLinkName"`
	Image           string `json:"image"`
	InternalAddress string `json:"internalAddress"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	Tagline = b.Tagline
	Repository = b.Repository
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfDir = b.DefaultConfDir
	ConfigFileName = b.ConfigFileName
	BinaryName = b.BinaryName
	ContainerName = b.ContainerName
	NetworkName = b.NetworkName
	HostLinkName = b.HostLinkName
	Image = b.Image
	InternalAddress = b.InternalAddress
}

// Exported variables for convenience.
var (
	Name            string
	LowerName       string
	Description     string
	Tagline         string
	Repository      string
	ConfigEnvPrefix string
	DefaultConfDir  string
	ConfigFileName  string
	BinaryName      string
	ContainerName   string
	NetworkName     string
	HostLinkName    string
	Image           string
	InternalAddress string

	// Version is set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

// Get returns the full Brand struct.
func Get() Brand {
	return b
}

// ConfigPath returns the config file path, checking env vars first.
// Priority: XIVOMEGA_CONFIG > XIVOMEGA_PREFIX/<file> > DefaultConfDir/<file>
func ConfigPath() string {
	if p := os.Getenv(ConfigEnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, ConfigFileName)
	}
	return filepath.Join(DefaultConfDir, ConfigFileName)
}
