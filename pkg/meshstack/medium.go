package meshstack

import (
	"sync"

	"github.com/golang/glog"
	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

var unspecified = tcpip.Address(make([]byte, header.IPv6AddressSize))

// Medium is the shared radio channel. Frames are delivered synchronously to
// the node owning the destination address.
type Medium struct {
	mu       sync.Mutex
	nodes    map[tcpip.Address]*Node
	attached []*Node

	// Dropped counts frames with no node at the destination address.
	Dropped int
}

func NewMedium() *Medium {
	return &Medium{
		nodes: make(map[tcpip.Address]*Node),
	}
}

func (m *Medium) Attach(n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.medium != nil {
		return errors.Errorf("node %q already attached", n.Name)
	}
	if other, ok := m.nodes[n.cfg.Address]; ok {
		return errors.Errorf("address %s already used by %q", n.cfg.Address, other.Name)
	}
	m.nodes[n.cfg.Address] = n
	m.attached = append(m.attached, n)
	n.medium = m
	return nil
}

func (m *Medium) Detach(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nodes[n.cfg.Address] != n {
		return
	}
	delete(m.nodes, n.cfg.Address)
	for i, a := range m.attached {
		if a == n {
			m.attached = append(m.attached[:i], m.attached[i+1:]...)
			break
		}
	}
	n.medium = nil
	n.up = false
}

func (m *Medium) Nodes() []*Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Node(nil), m.attached...)
}

// Run runs every attached node once.
func (m *Medium) Run() {
	for _, n := range m.Nodes() {
		n.Run()
	}
}

func (m *Medium) border() *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.attached {
		if n.cfg.Role == RoleRouter && n.up {
			return n
		}
	}
	return nil
}

func (m *Medium) transmit(packet []byte) bool {
	dst := header.IPv6(packet).DestinationAddress()
	m.mu.Lock()
	n := m.nodes[dst]
	if n == nil || !n.up {
		m.Dropped++
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()
	n.receive(packet)
	return true
}

// transmit sends f from socket s. It reports whether a node took delivery.
func (n *Node) transmit(s *socket, f *Frame) bool {
	if !n.up {
		return false
	}
	f.Src = n.cfg.Address
	f.SrcPort = s.port
	if f.Proto == ProtocolTCP {
		f.SeqNum = s.sndNxt
		f.AckNum = s.rcvNxt
	}
	packet, err := SerializeFrame(f)
	if err != nil {
		glog.Errorf("%s: %v", n.Name, err)
		return false
	}
	if n.medium == nil {
		if f.Dst != n.cfg.Address {
			return false
		}
		n.receive(packet)
		return true
	}
	return n.medium.transmit(packet)
}

func (n *Node) receive(packet []byte) {
	f, err := DeserializeFrame(packet)
	if err != nil {
		glog.Warningf("%s: dropping packet: %v", n.Name, err)
		return
	}
	switch f.Proto {
	case ProtocolUDP:
		n.receiveUDP(f)
	case ProtocolTCP:
		n.receiveTCP(f)
	}
}

func (n *Node) receiveUDP(f *Frame) {
	id, ok := n.ports[portKey{ProtocolUDP, f.DstPort}]
	if !ok {
		glog.V(1).Infof("%s: no UDP socket on port %d, dropping", n.Name, f.DstPort)
		return
	}
	s := n.sockets[id]
	s.dgrams = append(s.dgrams, datagram{
		from:    Address{Type: AddressIPv6, Addr: f.Src, Identifier: f.SrcPort},
		payload: f.Payload,
	})
	n.post(s, EventData, len(f.Payload))
}

func (n *Node) receiveTCP(f *Frame) {
	var s *socket
	if id, ok := n.ports[portKey{ProtocolTCP, f.DstPort}]; ok {
		s = n.sockets[id]
	}
	from := Address{Type: AddressIPv6, Addr: f.Src, Identifier: f.SrcPort}

	if f.Flags&header.TCPFlagSyn != 0 && f.Flags&header.TCPFlagAck == 0 {
		if s == nil || !s.bound || s.state != tcpClosed {
			n.reset(f)
			return
		}
		s.remote = from
		s.state = tcpEstablished
		s.rcvNxt = f.SeqNum + 1
		n.transmit(s, &Frame{Proto: ProtocolTCP, Dst: f.Src, DstPort: f.SrcPort, Flags: header.TCPFlagSyn | header.TCPFlagAck})
		n.post(s, EventIncomingConnection, 0)
		return
	}

	if s == nil || s.remote.Addr != from.Addr || s.remote.Identifier != from.Identifier {
		if f.Flags&header.TCPFlagRst == 0 {
			n.reset(f)
		}
		return
	}

	switch {
	case f.Flags&header.TCPFlagRst != 0:
		if s.state != tcpClosed {
			s.state = tcpClosed
			n.post(s, EventConnectionReset, 0)
		}
	case f.Flags&header.TCPFlagSyn != 0:
		if s.state == tcpSynSent {
			s.state = tcpEstablished
			s.rcvNxt = f.SeqNum + 1
			n.post(s, EventBindDone, 0)
		}
	case f.Flags&header.TCPFlagFin != 0:
		if s.state == tcpEstablished {
			s.state = tcpClosed
			n.post(s, EventConnectClosed, 0)
		}
	case len(f.Payload) > 0:
		if s.state != tcpEstablished {
			return
		}
		if s.stream.Free() < len(f.Payload) {
			glog.Warningf("%s: socket %d receive buffer full, dropping %d bytes", n.Name, s.id, len(f.Payload))
			n.post(s, EventNoRAM, 0)
			return
		}
		if _, err := s.stream.Write(f.Payload); err != nil {
			glog.Errorf("%s: socket %d: %v", n.Name, s.id, err)
			return
		}
		s.rcvNxt += uint32(len(f.Payload))
		n.post(s, EventData, len(f.Payload))
	}
}

// reset answers an unexpected TCP segment with RST.
func (n *Node) reset(f *Frame) {
	if !n.up {
		return
	}
	packet, err := SerializeFrame(&Frame{
		Proto:   ProtocolTCP,
		Src:     n.cfg.Address,
		Dst:     f.Src,
		SrcPort: f.DstPort,
		DstPort: f.SrcPort,
		Flags:   header.TCPFlagRst,
	})
	if err != nil {
		glog.Errorf("%s: %v", n.Name, err)
		return
	}
	if n.medium != nil {
		n.medium.transmit(packet)
	} else if f.Src == n.cfg.Address {
		n.receive(packet)
	}
}
