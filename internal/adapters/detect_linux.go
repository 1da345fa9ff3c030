//go:build linux
// +build linux

package adapters

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"

	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/hostnet"
)

// sysClassNet is swapped out by tests.
var sysClassNet = "/sys/class/net"

var excludedPrefixes = []string{
	"lo", "veth", "docker", "podman", "cni", "br-", "virbr", "tun", "tap", "wg",
}

// Detect scans the host's interfaces and returns the adapters usable as an
// ipvlan parent: operationally up, holding an IPv4 address, and backed by
// a real device rather than a virtual one.
func Detect(nl hostnet.Netlinker) ([]Candidate, error) {
	links, err := nl.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	handle, err := ethtool.NewEthtool()
	if err == nil {
		defer handle.Close()
	} else {
		handle = nil
	}

	var candidates []Candidate
	for _, link := range links {
		name := link.Attrs().Name
		if shouldExclude(name) || isVirtualInterface(name) {
			continue
		}
		if link.Attrs().OperState != netlink.OperUp {
			continue
		}

		addrs, err := nl.AddrList(link, netlink.FAMILY_V4)
		if err != nil || len(addrs) == 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			Name:     name,
			Driver:   driverName(handle, name),
			Speed:    linkSpeed(name),
			Wireless: isWireless(name),
			Address:  addrs[0].IPNet.String(),
		})
	}
	return candidates, nil
}

func shouldExclude(name string) bool {
	if name == brand.HostLinkName || name == brand.NetworkName {
		return true
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// isVirtualInterface treats anything without a real MAC address as virtual.
// Interface paths vary across bare metal, VMs, and handhelds, so the MAC is
// the most portable signal.
func isVirtualInterface(name string) bool {
	data, err := os.ReadFile(filepath.Join(sysClassNet, name, "address"))
	if err != nil {
		return true
	}
	mac := strings.TrimSpace(string(data))
	if mac == "" || mac == "00:00:00:00:00:00" {
		return true
	}
	if _, err := net.ParseMAC(mac); err != nil {
		return true
	}
	return false
}

// isWireless checks for the sysfs wireless subdirectory.
func isWireless(name string) bool {
	_, err := os.Stat(filepath.Join(sysClassNet, name, "wireless"))
	return err == nil
}

// driverName resolves the kernel driver via ethtool, falling back to sysfs.
func driverName(handle *ethtool.Ethtool, name string) string {
	if handle != nil {
		if driver, err := handle.DriverName(name); err == nil && driver != "" {
			return driver
		}
	}
	target, err := os.Readlink(filepath.Join(sysClassNet, name, "device/driver/module"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// linkSpeed reads the negotiated link speed, empty when unknown.
func linkSpeed(name string) string {
	data, err := os.ReadFile(filepath.Join(sysClassNet, name, "speed"))
	if err != nil {
		return ""
	}
	speed := strings.TrimSpace(string(data))
	if speed == "" || speed == "-1" {
		return ""
	}
	return speed + " Mbps"
}
