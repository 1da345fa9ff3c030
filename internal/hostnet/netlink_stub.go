//go:build !linux
// +build !linux

package hostnet

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance (stub).
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker is a stub implementation of Netlinker for non-Linux
// platforms. Only Linux is supported at runtime; this exists so the
// package compiles everywhere for tests.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return nil, fmt.Errorf("LinkByName not supported on this platform")
}

func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return nil, fmt.Errorf("LinkList not supported on this platform")
}

func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return fmt.Errorf("LinkAdd not supported on this platform")
}

func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return fmt.Errorf("LinkDel not supported on this platform")
}

func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return fmt.Errorf("LinkSetUp not supported on this platform")
}

func (r *RealNetlinker) LinkSetDown(link netlink.Link) error {
	return fmt.Errorf("LinkSetDown not supported on this platform")
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, fmt.Errorf("AddrList not supported on this platform")
}

func (r *RealNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return fmt.Errorf("AddrAdd not supported on this platform")
}

func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return fmt.Errorf("RouteAdd not supported on this platform")
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return fmt.Errorf("RouteDel not supported on this platform")
}

func (r *RealNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	return netlink.ParseAddr(s)
}
