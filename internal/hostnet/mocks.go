package hostnet

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkAdd(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkDel(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetUp(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetDown(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Addr), args.Error(1)
}

func (m *MockNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	args := m.Called(link, addr)
	return args.Error(0)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteDel(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	args := m.Called(s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*netlink.Addr), args.Error(1)
}
