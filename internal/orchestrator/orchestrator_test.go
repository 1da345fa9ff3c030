package orchestrator

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/firewall"
	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/netplan"
	"github.com/shingonati0n/xivomega/internal/podman"
)

type fixture struct {
	orc *Orchestrator
	rec *podman.RecordingRunner
	nl  *hostnet.MockNetlinker
	ipt *firewall.MockCommandRunner
}

func newFixture() *fixture {
	rec := podman.NewRecordingRunner()
	nl := new(hostnet.MockNetlinker)
	ipt := new(firewall.MockCommandRunner)

	client := podman.NewClient(rec)
	host := hostnet.NewManager(nl)
	fw := firewall.NewCoordinator(ipt, host, client, brand.InternalAddress)

	return &fixture{
		orc: New(client, host, fw),
		rec: rec,
		nl:  nl,
		ipt: ipt,
	}
}

func testPlan() *netplan.Plan {
	return &netplan.Plan{
		AdapterName: "wlan0",
		CIDR:        "192.168.1.5/24",
		PrefixLen:   24,
		Subnet:      "192.168.1.0/24",
		Network:     "192.168.1.0",
		Gateway:     "192.168.1.1",
		Broadcast:   "192.168.1.255",
	}
}

func testAssignment() *netplan.Assignment {
	return &netplan.Assignment{
		HostAddress:     "192.168.1.252",
		WorkloadAddress: "192.168.1.253",
	}
}

// expectCompanionCreate wires the netlink mock for a successful companion
// interface setup.
func (f *fixture) expectCompanionCreate(t *testing.T) {
	t.Helper()
	parent := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "wlan0", Index: 2}}
	companion := &netlink.IPVlan{LinkAttrs: netlink.LinkAttrs{Name: brand.HostLinkName, Index: 7}}
	addr, err := netlink.ParseAddr("192.168.1.252/24")
	require.NoError(t, err)

	f.nl.On("LinkByName", "wlan0").Return(parent, nil)
	f.nl.On("LinkAdd", mock.Anything).Return(nil)
	f.nl.On("LinkByName", brand.HostLinkName).Return(companion, nil)
	f.nl.On("ParseAddr", "192.168.1.252/24").Return(addr, nil)
	f.nl.On("AddrAdd", mock.Anything, mock.Anything).Return(nil)
	f.nl.On("LinkSetUp", mock.Anything).Return(nil)
}

func (f *fixture) expectCompanionRemove() {
	companion := &netlink.IPVlan{LinkAttrs: netlink.LinkAttrs{Name: brand.HostLinkName, Index: 7}}
	f.nl.On("LinkByName", brand.HostLinkName).Return(companion, nil)
	f.nl.On("LinkSetDown", mock.Anything).Return(nil)
	f.nl.On("LinkDel", mock.Anything).Return(nil)
}

func TestProvisionOrder(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)

	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))

	require.Len(t, f.rec.Calls, 4)
	assert.Equal(t, "network", f.rec.Calls[0][1])
	assert.Equal(t, "create", f.rec.Calls[0][2])
	assert.Equal(t, "create", f.rec.Calls[1][1])
	assert.Equal(t, []string{podman.Binary, "network", "connect", brand.NetworkName, brand.ContainerName, "--ip=192.168.1.253"}, f.rec.Calls[2])
	assert.Equal(t, []string{podman.Binary, "start", brand.ContainerName}, f.rec.Calls[3])

	roster := f.orc.Roster()
	require.Len(t, roster, 4)
	assert.Equal(t, KindNetwork, roster[0].Kind)
	assert.Equal(t, KindCompanion, roster[1].Kind)
	assert.Equal(t, KindContainer, roster[2].Kind)
	assert.Equal(t, StateRunning, roster[2].State)
	assert.Equal(t, KindAttachment, roster[3].Kind)
}

func TestProvisionNetworkCreateFatal(t *testing.T) {
	f := newFixture()
	plan := testPlan()
	f.rec.Errors["podman network create --subnet="+plan.Subnet+" --gateway="+plan.Gateway+" --driver=ipvlan -o parent=wlan0 "+brand.NetworkName] = errors.New("subnet already claimed")

	err := f.orc.Provision(plan, testAssignment())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvisioningFailed))
	assert.True(t, f.orc.Provisioned())
	assert.Empty(t, f.orc.Roster(), "nothing was created, roster must stay empty")
}

func TestProvisionContainerCreateFatal(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	f.rec.Errors["podman create"] = errors.New("image not found")

	err := f.orc.Provision(testPlan(), testAssignment())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvisioningFailed))

	// Network and companion were created before the failure; teardown
	// must still unwind them.
	roster := f.orc.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, KindNetwork, roster[0].Kind)
	assert.Equal(t, KindCompanion, roster[1].Kind)
}

func TestProvisionBestEffortSteps(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	f.rec.Errors["podman network connect "+brand.NetworkName+" "+brand.ContainerName+" --ip=192.168.1.253"] = errors.New("address in use")
	f.rec.Errors["podman start "+brand.ContainerName] = errors.New("cannot start")

	// Attach and start failures are logged, not fatal.
	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))

	roster := f.orc.Roster()
	require.Len(t, roster, 3, "failed attachment must not be recorded")
	assert.Equal(t, StateCreated, roster[2].State, "failed start leaves the container in Created")
}

func TestTeardownNoProvisioningIsNoOp(t *testing.T) {
	f := newFixture()

	f.orc.Teardown()

	assert.Empty(t, f.rec.Calls, "teardown with zero prior provisioning must make zero destructive calls")
	f.nl.AssertNotCalled(t, "RouteDel", mock.Anything)
	f.nl.AssertNotCalled(t, "LinkDel", mock.Anything)
}

func TestTeardownRemovalOrder(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))
	f.rec.Calls = nil

	var routeDels int
	f.nl.On("RouteDel", mock.Anything).Run(func(mock.Arguments) { routeDels++ }).Return(nil)

	companion := &netlink.IPVlan{LinkAttrs: netlink.LinkAttrs{Name: brand.HostLinkName, Index: 7}}
	f.nl.On("LinkByName", brand.HostLinkName).Return(companion, nil)
	f.nl.On("LinkSetDown", mock.Anything).Return(nil)
	podmanCallsBeforeLinkDel := -1
	f.nl.On("LinkDel", mock.Anything).Run(func(mock.Arguments) {
		podmanCallsBeforeLinkDel = len(f.rec.Calls)
	}).Return(nil)

	f.orc.Teardown()

	assert.Equal(t, len(firewall.GameSubnets), routeDels, "routes are removed first")

	// Removal sequence: stop, detach the workload, remove the isolated
	// network, remove the container, then the companion link goes last.
	require.Len(t, f.rec.Calls, 4)
	assert.Equal(t, []string{podman.Binary, "stop", brand.ContainerName}, f.rec.Calls[0])
	assert.Equal(t, []string{podman.Binary, "network", "disconnect", brand.NetworkName, brand.ContainerName}, f.rec.Calls[1])
	assert.Equal(t, []string{podman.Binary, "network", "rm", brand.NetworkName}, f.rec.Calls[2])
	assert.Equal(t, []string{podman.Binary, "rm", brand.ContainerName}, f.rec.Calls[3])
	assert.Equal(t, 4, podmanCallsBeforeLinkDel, "companion delete happens after every runtime removal")

	assert.Empty(t, f.orc.Roster())
}

func TestTeardownBestEffortContinues(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))
	f.rec.Calls = nil

	f.nl.On("RouteDel", mock.Anything).Return(errors.New("no such route"))
	f.expectCompanionRemove()
	f.rec.Errors["podman stop "+brand.ContainerName] = errors.New("already stopped")
	f.rec.Errors["podman network disconnect "+brand.NetworkName+" "+brand.ContainerName] = errors.New("not attached")

	f.orc.Teardown()

	// Every removal was still attempted.
	require.Len(t, f.rec.Calls, 4)
	assert.Equal(t, []string{podman.Binary, "rm", brand.ContainerName}, f.rec.Calls[3])
}

func TestTeardownRunsExactlyOnce(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))

	f.nl.On("RouteDel", mock.Anything).Return(nil)
	f.expectCompanionRemove()

	f.orc.Teardown()
	destructive := len(f.rec.Calls)

	// A second invocation (interruption racing normal exit) is a no-op.
	f.orc.Teardown()
	assert.Equal(t, destructive, len(f.rec.Calls))
}

func TestSelfCleanCountsRemovals(t *testing.T) {
	f := newFixture()

	f.nl.On("RouteDel", mock.Anything).Return(nil)
	f.expectCompanionRemove()

	cleaned := f.orc.SelfClean()

	// 5 routes + stop + rm + network rm + companion
	assert.Equal(t, len(firewall.GameSubnets)+4, cleaned)
}

func TestSelfCleanToleratesAbsence(t *testing.T) {
	f := newFixture()

	f.nl.On("RouteDel", mock.Anything).Return(errors.New("no such route"))
	f.nl.On("LinkByName", brand.HostLinkName).Return(nil, errors.New("link not found"))
	f.rec.Errors["podman stop "+brand.ContainerName] = errors.New("no such container")
	f.rec.Errors["podman rm "+brand.ContainerName] = errors.New("no such container")
	f.rec.Errors["podman network rm "+brand.NetworkName] = errors.New("no such network")

	cleaned := f.orc.SelfClean()
	assert.Zero(t, cleaned, "a clean host yields a silent no-op")
}

func TestReconnectSequence(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.orc.Reconnect())

	require.Len(t, f.rec.Calls, 3)
	assert.Equal(t, []string{podman.Binary, "restart", brand.ContainerName}, f.rec.Calls[0])
	assert.Equal(t, []string{podman.Binary, "exec", brand.ContainerName, "iptables", "-t", "nat", "-F", "POSTROUTING"}, f.rec.Calls[1])
	assert.Equal(t, []string{podman.Binary, "exec", brand.ContainerName, firewall.WorkloadRuleScript}, f.rec.Calls[2])
}

func TestReconnectRestartFailure(t *testing.T) {
	f := newFixture()
	f.rec.Errors["podman restart "+brand.ContainerName] = errors.New("container gone")

	err := f.orc.Reconnect()
	require.Error(t, err)
	require.Len(t, f.rec.Calls, 1, "NAT flush must not run after a failed restart")
}

func TestGatewayUsedForRoutes(t *testing.T) {
	f := newFixture()
	f.expectCompanionCreate(t)
	require.NoError(t, f.orc.Provision(testPlan(), testAssignment()))

	f.expectCompanionRemove()
	f.nl.On("RouteDel", mock.MatchedBy(func(r *netlink.Route) bool {
		return r.Gw.Equal(net.ParseIP(brand.InternalAddress))
	})).Return(nil)

	f.orc.Teardown()
	f.nl.AssertExpectations(t)
}
