package meshsal

import (
	"time"

	"github.com/golang/glog"
	"github.com/google/netstack/tcpip"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// MeshNode is a mesh stack together with its network interface controls.
// *meshstack.Node implements it.
type MeshNode interface {
	meshstack.Stack

	SetNetworkHandler(h func(meshstack.NetworkStatus))
	InterfaceUp() int8
	InterfaceDown() int8
	GlobalAddress() (tcpip.Address, bool)
	BorderRouter() (tcpip.Address, bool)
	TimerRequest(d time.Duration, fn func()) int
	TimerCancel(id int) bool
}

var _ MeshNode = (*meshstack.Node)(nil)

// Mesh is the application's entry point to one mesh node: it owns the
// adaptor for the node's sockets and the bootstrap tasklet.
type Mesh struct {
	node    MeshNode
	adaptor *Adaptor
	tasklet tasklet
}

func NewMesh(node MeshNode) *Mesh {
	return &Mesh{
		node:    node,
		adaptor: New(node),
		tasklet: tasklet{node: node},
	}
}

func (m *Mesh) Adaptor() *Adaptor {
	return m.adaptor
}

// Init registers the adaptor with the socket layer.
func (m *Mesh) Init() error {
	return sal.RegisterStack(m.adaptor)
}

// Connect starts joining the mesh. ready is called from Run once the node
// has bootstrapped; failed attempts are retried every RetryInterval until
// Disconnect.
func (m *Mesh) Connect(ready func()) error {
	m.tasklet.ready = ready
	if rc := m.tasklet.start(); rc < 0 {
		return errors.Wrapf(sal.ErrUnknown, "interface up returned %d", rc)
	}
	return nil
}

func (m *Mesh) Disconnect() error {
	glog.V(2).Info("mesh_interface: disconnect()")
	m.tasklet.stop()
	m.node.InterfaceDown()
	return nil
}

// IPAddress returns the node's global address. It fails until the node has
// joined the mesh.
func (m *Mesh) IPAddress() (string, error) {
	addr, ok := m.node.GlobalAddress()
	if !ok {
		return "", errors.Wrap(sal.ErrUnknown, "no global address")
	}
	return addr.String(), nil
}

func (m *Mesh) RouterIPAddress() (string, error) {
	addr, ok := m.node.BorderRouter()
	if !ok {
		return "", errors.Wrap(sal.ErrUnknown, "no border router")
	}
	return addr.String(), nil
}

// Run handles the stack events pending on entry.
func (m *Mesh) Run() {
	m.node.Run()
}

// Close destroys every socket still open through the adaptor and leaves the
// mesh.
func (m *Mesh) Close() error {
	var err error
	for _, s := range m.adaptor.contexts {
		if s == nil {
			continue
		}
		err = multierr.Append(err, m.adaptor.Destroy(s))
	}
	return multierr.Combine(err, m.Disconnect())
}
