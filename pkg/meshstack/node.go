package meshstack

import (
	"time"

	"github.com/golang/glog"
	"github.com/google/btree"
	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
	"github.com/smallnest/ringbuffer"
	"go.uber.org/multierr"
)

const (
	ephemeralPortFirst = 49152
	defaultStreamBuf   = 1280

	// MaxPayload is the largest send SocketRead can report back.
	MaxPayload = 0x7fff
)

type Role uint8

const (
	RoleHost Role = iota
	RoleRouter
)

func (r Role) String() string {
	if r == RoleRouter {
		return "router"
	}
	return "host"
}

type NodeConfig struct {
	Name    string
	Address tcpip.Address
	Role    Role

	// SocketsMax defaults to the package SocketsMax.
	SocketsMax int
	// StreamBufferSize is the per-socket TCP receive buffer.
	StreamBufferSize int
	InterfaceID      int8

	// Now defaults to time.Now.
	Now func() time.Time
}

type tcpState uint8

const (
	tcpClosed tcpState = iota
	tcpSynSent
	tcpEstablished
)

func (s tcpState) String() string {
	switch s {
	case tcpSynSent:
		return "SYN_SENT"
	case tcpEstablished:
		return "ESTABLISHED"
	}
	return "CLOSED"
}

type portKey struct {
	proto tcpip.TransportProtocolNumber
	port  uint16
}

type datagram struct {
	from    Address
	payload []byte
}

type socket struct {
	id    int8
	proto tcpip.TransportProtocolNumber
	port  uint16
	bound bool
	cb    Callback

	// UDP
	dgrams []datagram

	// TCP
	stream *ringbuffer.RingBuffer
	state  tcpState
	remote Address
	sndNxt uint32
	rcvNxt uint32
}

// Node is one simulated mesh device.
type Node struct {
	Name string

	cfg      NodeConfig
	medium   *Medium
	sockets  []*socket
	freeIDs  *btree.BTreeG[int8]
	ports    map[portKey]int8
	nextPort uint16
	events   *eventQueue

	up         bool
	router     tcpip.Address
	netHandler func(NetworkStatus)
}

func NewNode(cfg NodeConfig) (*Node, error) {
	if len(cfg.Address) != header.IPv6AddressSize {
		return nil, errors.Errorf("node %q: address must be %d bytes, got %d", cfg.Name, header.IPv6AddressSize, len(cfg.Address))
	}
	if cfg.SocketsMax <= 0 {
		cfg.SocketsMax = SocketsMax
	}
	if cfg.SocketsMax > 127 {
		return nil, errors.Errorf("node %q: at most 127 sockets, got %d", cfg.Name, cfg.SocketsMax)
	}
	if cfg.StreamBufferSize <= 0 {
		cfg.StreamBufferSize = defaultStreamBuf
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	n := &Node{
		Name:     cfg.Name,
		cfg:      cfg,
		sockets:  make([]*socket, cfg.SocketsMax),
		freeIDs:  btree.NewOrderedG[int8](2),
		ports:    make(map[portKey]int8),
		nextPort: ephemeralPortFirst,
		events:   newEventQueue(),
	}
	for id := 0; id < cfg.SocketsMax; id++ {
		n.freeIDs.ReplaceOrInsert(int8(id))
	}
	return n, nil
}

func (n *Node) Address() tcpip.Address {
	return n.cfg.Address
}

func (n *Node) Role() Role {
	return n.cfg.Role
}

// Up reports whether the node has completed bootstrap.
func (n *Node) Up() bool {
	return n.up
}

func (n *Node) lookup(id int8) *socket {
	if id < 0 || int(id) >= len(n.sockets) {
		return nil
	}
	return n.sockets[id]
}

func (n *Node) ephemeralPort(proto tcpip.TransportProtocolNumber) (uint16, bool) {
	for i := 0; i <= 0xffff-ephemeralPortFirst; i++ {
		port := n.nextPort
		n.nextPort++
		if n.nextPort == 0 {
			n.nextPort = ephemeralPortFirst
		}
		if _, used := n.ports[portKey{proto, port}]; !used {
			return port, true
		}
	}
	return 0, false
}

// post queues an event for s. It is dropped at dispatch if s has been freed
// in the meantime.
func (n *Node) post(s *socket, t EventType, dataLen int) {
	ev := Event{
		SocketID:    s.id,
		Type:        t,
		InterfaceID: n.cfg.InterfaceID,
		DataLen:     uint16(dataLen),
	}
	n.events.Post(func() {
		if n.lookup(s.id) != s {
			glog.V(1).Infof("%s: dropping %s for released socket %d", n.Name, t, s.id)
			return
		}
		s.cb(ev)
	})
}

func (n *Node) SocketOpen(proto tcpip.TransportProtocolNumber, identifier uint16, cb Callback) int8 {
	if cb == nil || (proto != ProtocolUDP && proto != ProtocolTCP) {
		return -1
	}
	port := identifier
	if port == 0 {
		var ok bool
		if port, ok = n.ephemeralPort(proto); !ok {
			return -1
		}
	} else if _, used := n.ports[portKey{proto, port}]; used {
		return -1
	}
	id, ok := n.freeIDs.DeleteMin()
	if !ok {
		glog.Warningf("%s: out of sockets", n.Name)
		return -1
	}

	s := &socket{
		id:    id,
		proto: proto,
		port:  port,
		bound: identifier != 0,
		cb:    cb,
	}
	if proto == ProtocolTCP {
		s.stream = ringbuffer.New(n.cfg.StreamBufferSize)
	}
	n.sockets[id] = s
	n.ports[portKey{proto, port}] = id
	glog.V(2).Infof("%s: socket_open proto=%d port=%d -> %d", n.Name, proto, port, id)
	return id
}

// SocketClose shuts down the connection of a TCP socket. The socket id stays
// allocated until SocketFree.
func (n *Node) SocketClose(id int8) int8 {
	s := n.lookup(id)
	if s == nil || s.proto != ProtocolTCP {
		return -1
	}
	switch s.state {
	case tcpClosed:
		return -2
	case tcpSynSent:
		return -3
	}
	n.transmit(s, &Frame{Proto: ProtocolTCP, Dst: s.remote.Addr, DstPort: s.remote.Identifier, Flags: header.TCPFlagFin | header.TCPFlagAck})
	s.state = tcpClosed
	n.post(s, EventConnectClosed, 0)
	return 0
}

func (n *Node) SocketFree(id int8) int8 {
	s := n.lookup(id)
	if s == nil {
		return -1
	}
	if s.proto == ProtocolTCP && s.state == tcpEstablished {
		n.transmit(s, &Frame{Proto: ProtocolTCP, Dst: s.remote.Addr, DstPort: s.remote.Identifier, Flags: header.TCPFlagFin | header.TCPFlagAck})
	}
	delete(n.ports, portKey{s.proto, s.port})
	n.sockets[id] = nil
	n.freeIDs.ReplaceOrInsert(id)
	glog.V(2).Infof("%s: socket_free %d", n.Name, id)
	return 0
}

func (n *Node) SocketConnect(id int8, addr *Address) int8 {
	s := n.lookup(id)
	if s == nil || addr == nil || len(addr.Addr) != header.IPv6AddressSize {
		return -1
	}
	if s.proto != ProtocolTCP {
		return -5
	}
	if s.state != tcpClosed {
		return -4
	}
	s.remote = *addr
	s.state = tcpSynSent
	if !n.transmit(s, &Frame{Proto: ProtocolTCP, Dst: addr.Addr, DstPort: addr.Identifier, Flags: header.TCPFlagSyn}) {
		s.state = tcpClosed
		n.post(s, EventNoRoute, 0)
	}
	return 0
}

func (n *Node) SocketBind(id int8, addr *Address) int8 {
	s := n.lookup(id)
	if s == nil || addr == nil {
		return -1
	}
	if addr.Addr != unspecified && addr.Addr != n.cfg.Address {
		return -3
	}
	if port := addr.Identifier; port != 0 && port != s.port {
		key := portKey{s.proto, port}
		if _, used := n.ports[key]; used {
			return -2
		}
		delete(n.ports, portKey{s.proto, s.port})
		n.ports[key] = id
		s.port = port
	}
	s.bound = true
	return 0
}

func (n *Node) SocketSend(id int8, buf []byte) int8 {
	s := n.lookup(id)
	if s == nil {
		return -1
	}
	if s.proto != ProtocolTCP {
		return -5
	}
	if len(buf) == 0 {
		return -6
	}
	if s.state != tcpEstablished {
		return -3
	}
	if len(buf) > MaxPayload {
		return -2
	}
	if n.transmit(s, &Frame{Proto: ProtocolTCP, Dst: s.remote.Addr, DstPort: s.remote.Identifier, Flags: header.TCPFlagPsh | header.TCPFlagAck, Payload: buf}) {
		s.sndNxt += uint32(len(buf))
		n.post(s, EventTxDone, len(buf))
	} else {
		n.post(s, EventNoRoute, 0)
	}
	return 0
}

func (n *Node) SocketSendTo(id int8, addr *Address, buf []byte) int8 {
	s := n.lookup(id)
	if s == nil || addr == nil || len(addr.Addr) != header.IPv6AddressSize {
		return -1
	}
	if s.proto != ProtocolUDP {
		return -5
	}
	if len(buf) == 0 {
		return -6
	}
	if len(buf) > MaxPayload {
		return -2
	}
	if n.transmit(s, &Frame{Proto: ProtocolUDP, Dst: addr.Addr, DstPort: addr.Identifier, Payload: buf}) {
		n.post(s, EventTxDone, len(buf))
	} else {
		n.post(s, EventNoRoute, 0)
	}
	return 0
}

// SocketRead copies the next pending datagram, or pending stream bytes, into
// buf. A datagram longer than buf is truncated.
func (n *Node) SocketRead(id int8, addr *Address, buf []byte) int16 {
	s := n.lookup(id)
	if s == nil {
		return -1
	}
	if s.proto == ProtocolUDP {
		if len(s.dgrams) == 0 {
			return 0
		}
		d := s.dgrams[0]
		s.dgrams[0] = datagram{}
		s.dgrams = s.dgrams[1:]
		if addr != nil {
			*addr = d.from
		}
		return int16(copy(buf, d.payload))
	}

	if addr != nil {
		*addr = s.remote
	}
	if len(buf) > MaxPayload {
		buf = buf[:MaxPayload]
	}
	read, err := s.stream.Read(buf)
	if err != nil && err != ringbuffer.ErrIsEmpty {
		glog.Errorf("%s: socket %d: %v", n.Name, id, err)
		return -1
	}
	return int16(read)
}

// Run dispatches every event and expired timer that is pending on entry.
// Work posted by the callbacks waits for the next Run.
func (n *Node) Run() {
	for _, entry := range n.events.Due(n.cfg.Now()) {
		entry.Run()
	}
}

// Pending reports how many events and timers are queued.
func (n *Node) Pending() int {
	return n.events.Len()
}

// Close frees every open socket.
func (n *Node) Close() error {
	var err error
	for id, s := range n.sockets {
		if s == nil {
			continue
		}
		if rc := n.SocketFree(int8(id)); rc != 0 {
			err = multierr.Append(err, errors.Errorf("%s: socket_free(%d) = %d", n.Name, id, rc))
		}
	}
	return err
}

// SocketInfo describes an open socket for listings.
type SocketInfo struct {
	ID      int8
	Proto   tcpip.TransportProtocolNumber
	Port    uint16
	Bound   bool
	State   string
	Remote  Address
	Pending int
}

func (n *Node) Sockets() []SocketInfo {
	infos := make([]SocketInfo, 0)
	for _, s := range n.sockets {
		if s == nil {
			continue
		}
		info := SocketInfo{
			ID:    s.id,
			Proto: s.proto,
			Port:  s.port,
			Bound: s.bound,
		}
		if s.proto == ProtocolTCP {
			info.State = s.state.String()
			info.Remote = s.remote
			info.Pending = s.stream.Length()
		} else {
			info.State = "-"
			info.Pending = len(s.dgrams)
		}
		infos = append(infos, info)
	}
	return infos
}
