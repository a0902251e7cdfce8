package meshsal

import (
	"time"

	"github.com/golang/glog"

	"MESH-SAL/pkg/meshstack"
)

// RetryInterval is how long the tasklet waits before starting bootstrap
// again after a failed or lost connection.
const RetryInterval = 5 * time.Second

// tasklet keeps the node's interface up until Disconnect.
type tasklet struct {
	node  MeshNode
	ready func()

	active      bool
	accessPoint bool
	retryTimer  int
}

func (t *tasklet) start() int8 {
	t.active = true
	t.node.SetNetworkHandler(t.networkEvent)
	rc := t.node.InterfaceUp()
	if rc != 0 {
		glog.Warningf("node_tasklet: start fail code %d", rc)
		return rc
	}
	glog.Info("node_tasklet: 6LoWPAN IP bootstrap started")
	return 0
}

func (t *tasklet) stop() {
	t.active = false
	t.accessPoint = false
	t.cancelRetry()
}

func (t *tasklet) networkEvent(status meshstack.NetworkStatus) {
	switch status {
	case meshstack.BootstrapReady:
		if !t.accessPoint {
			t.accessPoint = true
			glog.Info("node_tasklet: network bootstrap ready")
			if addr, ok := t.node.BorderRouter(); ok {
				glog.V(1).Infof("node_tasklet: border router %s", addr)
			}
			if t.ready != nil {
				t.ready()
			}
		}
	case meshstack.ScanFail:
		glog.V(1).Info("node_tasklet: link layer scan fail, no beacons")
		t.accessPoint = false
	case meshstack.AddressAllocationFail:
		glog.V(1).Info("node_tasklet: ND scan / GP registration fail")
		t.accessPoint = false
	case meshstack.ConnectionDown:
		glog.V(1).Info("node_tasklet: connection down, scanning for a new network")
		t.accessPoint = false
	case meshstack.ParentPollFail:
		t.accessPoint = false
	case meshstack.AuthenticationFail:
		glog.V(1).Info("node_tasklet: network authentication fail")
		t.accessPoint = false
	default:
		glog.V(1).Infof("node_tasklet: unknown network event %d", status)
	}

	if !t.accessPoint && t.active {
		t.armRetry()
	}
}

func (t *tasklet) armRetry() {
	t.cancelRetry()
	t.retryTimer = t.node.TimerRequest(RetryInterval, func() {
		t.retryTimer = 0
		if !t.active {
			return
		}
		if t.node.InterfaceUp() == 0 {
			glog.V(1).Info("node_tasklet: start network bootstrap again")
		}
	})
}

func (t *tasklet) cancelRetry() {
	if t.retryTimer != 0 {
		t.node.TimerCancel(t.retryTimer)
		t.retryTimer = 0
	}
}
