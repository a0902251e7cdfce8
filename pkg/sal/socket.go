package sal

import (
	"net"
)

// StackID tags which registered stack owns a socket or address.
type StackID uint8

const (
	StackUninit StackID = iota
	StackNanostackIPv6
	StackMax
)

type AddressFamily uint8

const (
	AFInet4 AddressFamily = iota
	AFInet6
)

// ProtoFamily is the socket type requested at create time.
type ProtoFamily uint8

const (
	SocketDgram ProtoFamily = iota
	SocketStream
)

func (pf ProtoFamily) String() string {
	switch pf {
	case SocketDgram:
		return "dgram"
	case SocketStream:
		return "stream"
	}
	return "unknown"
}

// Status is a bitmask of the socket's current state.
type Status uint8

const (
	StatusIdle      Status = 0
	StatusConnected Status = 1 << 0
	StatusBound     Status = 1 << 1
)

// Addr is the portable socket address: a stack tag and 16 address bytes in
// network order.
type Addr struct {
	Type   StackID
	IPv6BE [16]byte
}

func (a Addr) String() string {
	return net.IP(a.IPv6BE[:]).String()
}

// Handler is the application callback. It runs synchronously inside the
// stack's event delivery and must not block.
type Handler func(e *Event)

// Socket is the application-owned socket handle. Impl and RxBufChain belong to
// the stack adaptor that created the socket.
type Socket struct {
	Stack   StackID
	Family  ProtoFamily
	Status  Status
	Handler Handler

	Impl       interface{}
	RxBufChain interface{}

	// Event is only set while Handler runs.
	Event *Event
}

// SendEvent hands e to the socket's handler.
func SendEvent(s *Socket, e *Event) {
	if s == nil || s.Handler == nil {
		return
	}
	// A handler may trigger a nested event on the same socket.
	prev := s.Event
	s.Event = e
	s.Handler(e)
	s.Event = prev
}
