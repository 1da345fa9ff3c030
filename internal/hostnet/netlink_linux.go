//go:build linux
// +build linux

package hostnet

import (
	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance.
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker is a concrete implementation of Netlinker backed by the
// actual netlink package.
type RealNetlinker struct{}

// LinkByName retrieves a link by name.
func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

// LinkList retrieves all links.
func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

// LinkAdd adds a new link.
func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return netlink.LinkAdd(link)
}

// LinkDel deletes a link.
func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return netlink.LinkDel(link)
}

// LinkSetUp sets the link up.
func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return netlink.LinkSetUp(link)
}

// LinkSetDown sets the link down.
func (r *RealNetlinker) LinkSetDown(link netlink.Link) error {
	return netlink.LinkSetDown(link)
}

// AddrList lists addresses on a link.
func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// AddrAdd adds an address to a link.
func (r *RealNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrAdd(link, addr)
}

// RouteAdd adds a route.
func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

// RouteDel deletes a route.
func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

// ParseAddr parses a CIDR string into a netlink.Addr.
func (r *RealNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	return netlink.ParseAddr(s)
}
