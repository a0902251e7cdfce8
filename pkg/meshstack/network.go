package meshstack

import (
	"time"

	"github.com/google/netstack/tcpip"
)

// NetworkStatus is reported to the network handler after each bootstrap
// attempt or link change.
type NetworkStatus uint8

const (
	BootstrapReady NetworkStatus = iota
	ScanFail
	AddressAllocationFail
	ConnectionDown
	ParentPollFail
	AuthenticationFail
)

var networkStatusNames = [...]string{
	BootstrapReady:        "ARM_NWK_BOOTSTRAP_READY",
	ScanFail:              "ARM_NWK_NWK_SCAN_FAIL",
	AddressAllocationFail: "ARM_NWK_IP_ADDRESS_ALLOCATION_FAIL",
	ConnectionDown:        "ARM_NWK_NWK_CONNECTION_DOWN",
	ParentPollFail:        "ARM_NWK_NWK_PARENT_POLL_FAIL",
	AuthenticationFail:    "ARM_NWK_AUHTENTICATION_FAIL",
}

func (s NetworkStatus) String() string {
	if int(s) < len(networkStatusNames) {
		return networkStatusNames[s]
	}
	return "ARM_NWK_UNKNOWN"
}

// SetNetworkHandler registers the receiver of network status events.
func (n *Node) SetNetworkHandler(h func(NetworkStatus)) {
	n.netHandler = h
}

// InterfaceUp starts a bootstrap attempt. The outcome is reported to the
// network handler on a later Run. A router node always succeeds; a host
// needs a router that is already up on the same medium.
func (n *Node) InterfaceUp() int8 {
	if n.up {
		return -1
	}
	n.events.Post(n.bootstrap)
	return 0
}

// InterfaceDown drops the node off the mesh.
func (n *Node) InterfaceDown() int8 {
	if !n.up {
		return -1
	}
	n.up = false
	n.router = ""
	n.events.Post(func() { n.report(ConnectionDown) })
	return 0
}

func (n *Node) bootstrap() {
	if n.up {
		return
	}
	status := ScanFail
	switch {
	case n.cfg.Role == RoleRouter:
		n.router = n.cfg.Address
		status = BootstrapReady
	case n.medium != nil:
		if border := n.medium.border(); border != nil {
			n.router = border.cfg.Address
			status = BootstrapReady
		}
	}
	n.up = status == BootstrapReady
	n.report(status)
}

func (n *Node) report(status NetworkStatus) {
	if n.netHandler != nil {
		n.netHandler(status)
	}
}

// GlobalAddress returns the node's global address once bootstrap is done.
func (n *Node) GlobalAddress() (tcpip.Address, bool) {
	if !n.up {
		return "", false
	}
	return n.cfg.Address, true
}

// BorderRouter returns the address of the router the node joined through.
func (n *Node) BorderRouter() (tcpip.Address, bool) {
	if !n.up {
		return "", false
	}
	return n.router, true
}

// TimerRequest runs fn on the first Run at least d from now.
func (n *Node) TimerRequest(d time.Duration, fn func()) int {
	return n.events.PostAt(n.cfg.Now().Add(d), fn)
}

func (n *Node) TimerCancel(id int) bool {
	return n.events.Cancel(id)
}
