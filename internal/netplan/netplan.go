// Package netplan derives the run's network plan from the live state of
// one adapter and allocates conflict-free addresses on its subnet.
//
// A Plan and an Assignment are computed once at startup and immutable
// afterward; every other component reads them, none mutates them.
package netplan

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/shingonati0n/xivomega/internal/config"
	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/logging"
)

// Plan describes the subnet this run operates on. Derived once from the
// selected adapter's first IPv4 address.
type Plan struct {
	AdapterName string
	CIDR        string // adapter address with prefix, e.g. "192.168.1.5/24"
	PrefixLen   int
	Subnet      string // network address with prefix, e.g. "192.168.1.0/24"
	Network     string
	Gateway     string
	Broadcast   string
}

// Origin records how an address was chosen.
type Origin int

const (
	OriginDefault Origin = iota
	OriginConfigured
)

func (o Origin) String() string {
	if o == OriginConfigured {
		return "configured"
	}
	return "default"
}

// Assignment holds the two addresses a run uses on the shared subnet.
type Assignment struct {
	HostAddress     string
	WorkloadAddress string
	HostOrigin      Origin
	WorkloadOrigin  Origin
}

// Overrides carries operator-pinned addresses; empty string means none.
type Overrides struct {
	HostAddress     string
	WorkloadAddress string
}

// ErrNoFreeAddresses is returned when the usable range minus the
// discovered in-use set leaves fewer than two candidates.
var ErrNoFreeAddresses = fmt.Errorf("no free addresses available on subnet")

// Derive builds a Plan from the named adapter's current address.
//
// The gateway is assumed to be the ".1" of the adapter's own /24 block, a
// deliberate simplification over consulting the routing table: every
// deployment this tool targets sits on a home-router /24.
func Derive(nl hostnet.Netlinker, adapterName string) (*Plan, error) {
	link, err := nl.LinkByName(adapterName)
	if err != nil {
		return nil, fmt.Errorf("adapter %s not found: %w", adapterName, err)
	}

	addrs, err := nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses on %s: %w", adapterName, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("adapter %s has no IPv4 address", adapterName)
	}

	ip := addrs[0].IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("adapter %s address %s is not IPv4", adapterName, addrs[0].IP)
	}
	mask := addrs[0].Mask
	prefixLen, _ := mask.Size()

	network := ip.Mask(mask)
	broadcast := broadcastOf(network, mask)

	plan := &Plan{
		AdapterName: adapterName,
		CIDR:        fmt.Sprintf("%s/%d", ip, prefixLen),
		PrefixLen:   prefixLen,
		Subnet:      fmt.Sprintf("%s/%d", network, prefixLen),
		Network:     network.String(),
		Gateway:     gatewayOf(ip),
		Broadcast:   broadcast.String(),
	}

	logging.WithComponent("planner").Info("network plan derived",
		"adapter", plan.AdapterName, "cidr", plan.CIDR,
		"subnet", plan.Subnet, "gateway", plan.Gateway, "broadcast", plan.Broadcast)
	return plan, nil
}

// Allocate picks the host-side and workload-side addresses.
//
// The usable pool is the subnet's addresses at offsets 4 through N-4:
// the leading block (network, gateway, and the first few addresses
// routers tend to hand out statically) and the trailing tail the
// container runtime uses for its own defaults stay reserved. Addresses
// seen by the discovery probe are removed, then two distinct picks are
// drawn at random.
//
// Overrides replace the corresponding pick after IPv4 syntax validation
// only. They are NOT checked against the in-use set or the reserved
// range: an operator-pinned address that collides with a live host is
// accepted as given.
func Allocate(plan *Plan, inUse map[string]bool, ov Overrides, rng *rand.Rand) (*Assignment, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for name, v := range map[string]string{
		"host override":     ov.HostAddress,
		"workload override": ov.WorkloadAddress,
	} {
		if v != "" && !config.IsIPv4(v) {
			return nil, fmt.Errorf("%w: %s %q", config.ErrInvalidAddress, name, v)
		}
	}

	assignment := &Assignment{}

	// Random picks are only needed for the sides not pinned by config.
	needed := 0
	if ov.HostAddress == "" {
		needed++
	}
	if ov.WorkloadAddress == "" {
		needed++
	}

	var picks []string
	if needed > 0 {
		pool, err := freePool(plan, inUse)
		if err != nil {
			return nil, err
		}
		if len(pool) < needed {
			return nil, fmt.Errorf("%w: %d candidates for %d picks", ErrNoFreeAddresses, len(pool), needed)
		}
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		picks = pool[:needed]
	}

	if ov.HostAddress != "" {
		assignment.HostAddress = ov.HostAddress
		assignment.HostOrigin = OriginConfigured
	} else {
		assignment.HostAddress = picks[0]
		picks = picks[1:]
	}

	if ov.WorkloadAddress != "" {
		assignment.WorkloadAddress = ov.WorkloadAddress
		assignment.WorkloadOrigin = OriginConfigured
	} else {
		assignment.WorkloadAddress = picks[0]
	}

	logging.WithComponent("planner").Info("addresses allocated",
		"host", assignment.HostAddress, "host_origin", assignment.HostOrigin.String(),
		"workload", assignment.WorkloadAddress, "workload_origin", assignment.WorkloadOrigin.String())
	return assignment, nil
}

// freePool returns the usable addresses of the plan's subnet minus the
// discovered in-use set, in subnet order.
func freePool(plan *Plan, inUse map[string]bool) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(plan.Subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid plan subnet %q: %w", plan.Subnet, err)
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("plan subnet %q is not IPv4", plan.Subnet)
	}
	size := 1 << (bits - ones)
	if size < 16 {
		return nil, fmt.Errorf("subnet %s too small for allocation", plan.Subnet)
	}

	pool := make([]string, 0, size-7)
	for i := 4; i <= size-4; i++ {
		addr := nthAddr(ipnet.IP, i).String()
		if !inUse[addr] {
			pool = append(pool, addr)
		}
	}
	return pool, nil
}

// nthAddr returns network+n as an IPv4 address.
func nthAddr(network net.IP, n int) net.IP {
	v := binary.BigEndian.Uint32(network.To4()) + uint32(n)
	out := make(net.IP, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}

// broadcastOf returns network OR NOT mask.
func broadcastOf(network net.IP, mask net.IPMask) net.IP {
	n := network.To4()
	out := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		out[i] = n[i] | ^mask[i]
	}
	return out
}

// gatewayOf returns the ".1" of the address's /24 block.
func gatewayOf(ip net.IP) string {
	v := ip.To4()
	return fmt.Sprintf("%d.%d.%d.1", v[0], v[1], v[2])
}
