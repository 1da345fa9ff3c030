package firewall

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/podman"
)

func newCoordinator(ipt *MockCommandRunner, nl *hostnet.MockNetlinker, rec *podman.RecordingRunner) *Coordinator {
	return NewCoordinator(ipt, hostnet.NewManager(nl), podman.NewClient(rec), "10.88.0.7")
}

func TestFlushHostChains(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	c := newCoordinator(ipt, nl, podman.NewRecordingRunner())

	ipt.On("Run", IptablesBinary, "-F", "INPUT").Return(nil).Once()
	ipt.On("Run", IptablesBinary, "-F", "FORWARD").Return(nil).Once()
	ipt.On("Run", IptablesBinary, "-F", "OUTPUT").Return(nil).Once()

	require.NoError(t, c.FlushHostChains())
	ipt.AssertExpectations(t)
}

func TestFlushHostChainsContinuesPastFailure(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	c := newCoordinator(ipt, nl, podman.NewRecordingRunner())

	ipt.On("Run", IptablesBinary, "-F", "INPUT").Return(errors.New("denied")).Once()
	ipt.On("Run", IptablesBinary, "-F", "FORWARD").Return(nil).Once()
	ipt.On("Run", IptablesBinary, "-F", "OUTPUT").Return(nil).Once()

	err := c.FlushHostChains()
	require.Error(t, err)
	ipt.AssertExpectations(t)
}

func TestApplyAndRemoveRoutesMirror(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	c := newCoordinator(ipt, nl, podman.NewRecordingRunner())

	var added, deleted []string
	nl.On("RouteAdd", mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(0).(*netlink.Route)
		added = append(added, r.Dst.String())
		assert.True(t, r.Gw.Equal(net.ParseIP("10.88.0.7")))
	}).Return(nil)
	nl.On("RouteDel", mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(0).(*netlink.Route)
		deleted = append(deleted, r.Dst.String())
	}).Return(nil)

	c.ApplyRoutes()
	removed := c.RemoveRoutes(false)

	assert.Equal(t, GameSubnets, added)
	assert.Equal(t, GameSubnets, deleted, "removal must mirror the install set exactly")
	assert.Equal(t, len(GameSubnets), removed)
}

func TestApplyRoutesBestEffort(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	c := newCoordinator(ipt, nl, podman.NewRecordingRunner())

	calls := 0
	nl.On("RouteAdd", mock.Anything).Run(func(mock.Arguments) { calls++ }).Return(errors.New("network unreachable"))

	c.ApplyRoutes()
	assert.Equal(t, len(GameSubnets), calls, "one failed route must not stop the rest")
}

func TestRemoveRoutesCountsSuccesses(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	c := newCoordinator(ipt, nl, podman.NewRecordingRunner())

	// First deletion fails (route absent), the rest succeed.
	nl.On("RouteDel", mock.MatchedBy(func(r *netlink.Route) bool {
		return r.Dst.String() == GameSubnets[0]
	})).Return(errors.New("no such route"))
	nl.On("RouteDel", mock.Anything).Return(nil)

	removed := c.RemoveRoutes(true)
	assert.Equal(t, len(GameSubnets)-1, removed)
}

func TestInitWorkloadRules(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	rec := podman.NewRecordingRunner()
	c := newCoordinator(ipt, nl, rec)

	ipt.On("Run", IptablesBinary, "-F", mock.Anything).Return(nil)

	require.NoError(t, c.InitWorkloadRules("xivomega"))
	require.Len(t, rec.Calls, 1)
	assert.Equal(t, []string{podman.Binary, "exec", "xivomega", WorkloadRuleScript}, rec.Calls[0])
}

func TestInitWorkloadRulesScriptFailureReported(t *testing.T) {
	ipt := new(MockCommandRunner)
	nl := new(hostnet.MockNetlinker)
	rec := podman.NewRecordingRunner()
	rec.Errors["podman exec xivomega /home/iptset.sh"] = errors.New("script missing")
	c := newCoordinator(ipt, nl, rec)

	ipt.On("Run", IptablesBinary, "-F", mock.Anything).Return(nil)

	// The error carries the script's diagnostics; callers treat it as
	// recoverable since every reconnect cycle re-runs the script.
	err := c.InitWorkloadRules("xivomega")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script missing")
}
