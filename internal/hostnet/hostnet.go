// Package hostnet manages the host-side network objects this tool owns:
// the ipvlan companion interface that lets host-originated traffic reach
// the isolated segment, and the static routes pointing game subnets at the
// workload's internal gateway.
//
// All netlink access goes through the Netlinker interface so the lifecycle
// logic is testable without touching the running kernel.
package hostnet

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/shingonati0n/xivomega/internal/logging"
)

// Netlinker abstracts the netlink operations this tool performs.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error

	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error

	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error

	ParseAddr(s string) (*netlink.Addr, error)
}

// Manager performs companion-interface and route operations.
type Manager struct {
	nl     Netlinker
	logger *logging.Logger
}

// NewManager creates a Manager using the given netlink implementation.
func NewManager(nl Netlinker) *Manager {
	return &Manager{
		nl:     nl,
		logger: logging.WithComponent("hostnet"),
	}
}

// CreateCompanion creates an ipvlan L2 interface named name on top of
// parent, assigns it addr/prefixLen with the given broadcast, and brings
// it up.
func (m *Manager) CreateCompanion(parent, name, addr string, prefixLen int, broadcast string) error {
	parentLink, err := m.nl.LinkByName(parent)
	if err != nil {
		return fmt.Errorf("parent adapter %s not found: %w", parent, err)
	}

	ipvlan := &netlink.IPVlan{
		LinkAttrs: netlink.LinkAttrs{
			Name:        name,
			ParentIndex: parentLink.Attrs().Index,
		},
		Mode: netlink.IPVLAN_MODE_L2,
	}
	if err := m.nl.LinkAdd(ipvlan); err != nil {
		return fmt.Errorf("failed to add ipvlan %s: %w", name, err)
	}
	m.logger.Info("host companion interface created", "link", name, "parent", parent)

	link, err := m.nl.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to get newly created link %s: %w", name, err)
	}

	nlAddr, err := m.nl.ParseAddr(fmt.Sprintf("%s/%d", addr, prefixLen))
	if err != nil {
		return fmt.Errorf("failed to parse companion address %s/%d: %w", addr, prefixLen, err)
	}
	if brd := net.ParseIP(broadcast); brd != nil {
		nlAddr.Broadcast = brd
	}
	if err := m.nl.AddrAdd(link, nlAddr); err != nil {
		return fmt.Errorf("failed to assign %s to %s: %w", addr, name, err)
	}
	m.logger.Info("host companion interface address assigned", "link", name, "addr", addr)

	if err := m.nl.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", name, err)
	}
	m.logger.Info("host companion interface is up", "link", name)

	return nil
}

// RemoveCompanion brings the named interface down and deletes it. Both
// steps are attempted even if the first fails; a missing link is reported
// as an error for the caller to tolerate.
func (m *Manager) RemoveCompanion(name string) error {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return fmt.Errorf("companion %s not found: %w", name, err)
	}

	downErr := m.nl.LinkSetDown(link)
	if downErr == nil {
		m.logger.Info("host companion interface down", "link", name)
	}

	if err := m.nl.LinkDel(link); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	m.logger.Info("host companion interface removed", "link", name)

	if downErr != nil {
		return fmt.Errorf("failed to bring down %s before delete: %w", name, downErr)
	}
	return nil
}

// AddRoute installs a static route to dstCIDR via the gateway address.
func (m *Manager) AddRoute(dstCIDR, via string) error {
	route, err := buildRoute(dstCIDR, via)
	if err != nil {
		return err
	}
	if err := m.nl.RouteAdd(route); err != nil {
		return fmt.Errorf("failed to add route %s via %s: %w", dstCIDR, via, err)
	}
	m.logger.Info("route added", "dst", dstCIDR, "via", via)
	return nil
}

// DelRoute removes the static route to dstCIDR via the gateway address.
// Exact mirror of AddRoute.
func (m *Manager) DelRoute(dstCIDR, via string) error {
	route, err := buildRoute(dstCIDR, via)
	if err != nil {
		return err
	}
	if err := m.nl.RouteDel(route); err != nil {
		return fmt.Errorf("failed to delete route %s via %s: %w", dstCIDR, via, err)
	}
	m.logger.Info("route deleted", "dst", dstCIDR, "via", via)
	return nil
}

func buildRoute(dstCIDR, via string) (*netlink.Route, error) {
	_, dst, err := net.ParseCIDR(dstCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid route destination %q: %w", dstCIDR, err)
	}
	gw := net.ParseIP(via)
	if gw == nil {
		return nil, fmt.Errorf("invalid route gateway %q", via)
	}
	return &netlink.Route{Dst: dst, Gw: gw}, nil
}
