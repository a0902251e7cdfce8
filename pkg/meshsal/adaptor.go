// Package meshsal adapts the mesh stack's socket primitives to the portable
// socket API in package sal.
package meshsal

import (
	"github.com/golang/glog"
	"github.com/google/netstack/tcpip"
	"github.com/pkg/errors"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// Adaptor is the sal.API implementation for one mesh stack instance.
type Adaptor struct {
	stack    meshstack.Stack
	contexts contextTable
}

var _ sal.API = (*Adaptor)(nil)

func New(stack meshstack.Stack) *Adaptor {
	return &Adaptor{stack: stack}
}

func (a *Adaptor) Stack() sal.StackID {
	return sal.StackNanostackIPv6
}

func (a *Adaptor) Version() int {
	return sal.Version
}

func (a *Adaptor) Init() error {
	return nil
}

func (a *Adaptor) Create(s *sal.Socket, af sal.AddressFamily, pf sal.ProtoFamily, h sal.Handler) error {
	glog.V(2).Infof("ns_sal: create() af=%d pf=%s", af, pf)
	if s == nil || h == nil {
		return sal.ErrNullPointer
	}
	if af != sal.AFInet6 {
		// Only IPv6 is supported by this stack.
		return sal.ErrBadFamily
	}

	var proto tcpip.TransportProtocolNumber
	switch pf {
	case sal.SocketDgram:
		proto = meshstack.ProtocolUDP
	case sal.SocketStream:
		proto = meshstack.ProtocolTCP
	default:
		return sal.ErrBadFamily
	}

	data := a.socketOpen(proto, 0, s)
	if data == nil {
		return sal.ErrBadAlloc
	}
	if data.socketID < 0 {
		return errors.Wrapf(sal.ErrUnknown, "socket_open returned %d", data.socketID)
	}
	s.Stack = sal.StackNanostackIPv6
	s.Impl = data
	s.Family = pf
	s.Handler = h
	s.Status = sal.StatusIdle
	s.RxBufChain = nil
	s.Event = nil
	return nil
}

// Destroy drops queued data and releases the stack socket. Local cleanup
// always completes; a stack fault is reported as ErrUnknown afterwards.
func (a *Adaptor) Destroy(s *sal.Socket) error {
	glog.V(2).Info("ns_sal: destroy()")
	if s == nil {
		return sal.ErrNullPointer
	}
	releaseChain(s)

	var err error
	if data := implOf(s); data != nil {
		if rc := a.socketFree(data, s); rc != 0 {
			err = errors.Wrapf(sal.ErrUnknown, "socket_free(%d) returned %d", data.socketID, rc)
		}
	}
	s.Impl = nil
	s.Status = sal.StatusIdle
	return err
}

func (a *Adaptor) Close(s *sal.Socket) error {
	if s == nil || implOf(s) == nil {
		return sal.ErrNullPointer
	}
	data := implOf(s)
	switch rc := a.stack.SocketClose(data.socketID); rc {
	case 0:
		return nil
	case -1:
		// Unknown id or a socket type without a connection to close.
		return errors.Wrapf(sal.ErrBadFamily, "socket_close(%d)", data.socketID)
	case -2, -3:
		return errors.Wrapf(sal.ErrNoConnection, "socket_close(%d) returned %d", data.socketID, rc)
	default:
		return errors.Wrapf(sal.ErrUnknown, "socket_close(%d) returned %d", data.socketID, rc)
	}
}

func (a *Adaptor) Connect(s *sal.Socket, addr *sal.Addr, port uint16) error {
	if s == nil || addr == nil || implOf(s) == nil {
		return sal.ErrNullPointer
	}
	data := implOf(s)
	native := toNative(addr, port)
	switch rc := a.stack.SocketConnect(data.socketID, &native); rc {
	case 0:
		return nil
	case -1:
		return errors.Wrapf(sal.ErrBadArgument, "connect %s", native)
	case -2:
		return errors.Wrapf(sal.ErrBadAlloc, "connect %s", native)
	case -5:
		return errors.Wrapf(sal.ErrBadFamily, "connect %s", native)
	default:
		return errors.Wrapf(sal.ErrUnknown, "connect %s returned %d", native, rc)
	}
}

func (a *Adaptor) Bind(s *sal.Socket, addr *sal.Addr, port uint16) error {
	if s == nil || implOf(s) == nil || addr == nil {
		return sal.ErrNullPointer
	}
	native := toNative(addr, port)
	if rc := a.stack.SocketBind(implOf(s).socketID, &native); rc != 0 {
		return errors.Wrapf(sal.ErrUnknown, "bind %s returned %d", native, rc)
	}
	s.Status |= sal.StatusBound
	return nil
}

// Send is for stream sockets only; datagram sockets in the mesh are never
// connected and must use SendTo.
func (a *Adaptor) Send(s *sal.Socket, buf []byte) error {
	if s == nil || implOf(s) == nil {
		return sal.ErrNullPointer
	}
	switch s.Family {
	case sal.SocketDgram:
		glog.Error("ns_sal: send() not supported with SOCKET_DGRAM")
		return sal.ErrBadFamily
	case sal.SocketStream:
	default:
		return sal.ErrUnknown
	}
	if buf == nil {
		return sal.ErrNullPointer
	}
	if len(buf) == 0 || len(buf) > 0xffff {
		return sal.ErrSize
	}

	data := implOf(s)
	switch rc := a.stack.SocketSend(data.socketID, buf); rc {
	case 0:
		return nil
	case -1, -6:
		return errors.Wrapf(sal.ErrBadArgument, "socket_send(%d) returned %d", data.socketID, rc)
	case -2:
		return errors.Wrapf(sal.ErrBadAlloc, "socket_send(%d)", data.socketID)
	case -3:
		return errors.Wrapf(sal.ErrNoConnection, "socket_send(%d)", data.socketID)
	default:
		return errors.Wrapf(sal.ErrUnknown, "socket_send(%d) returned %d", data.socketID, rc)
	}
}

func (a *Adaptor) SendTo(s *sal.Socket, buf []byte, addr *sal.Addr, port uint16) error {
	glog.V(2).Info("ns_sal: send_to()")
	if s == nil || implOf(s) == nil || buf == nil || addr == nil {
		return sal.ErrNullPointer
	}
	if len(buf) == 0 || len(buf) > 0xffff {
		return sal.ErrSize
	}

	switch s.Family {
	case sal.SocketDgram:
		data := implOf(s)
		native := toNative(addr, port)
		if rc := a.stack.SocketSendTo(data.socketID, &native, buf); rc != 0 {
			glog.Errorf("ns_sal: send_to: error=%d", rc)
			return errors.Wrapf(sal.ErrUnknown, "sendto %s returned %d", native, rc)
		}
		return nil
	case sal.SocketStream:
		return sal.ErrBadFamily
	}
	return sal.ErrUnknown
}

// Recv reads stream data, joining queued chunks until buf is full.
func (a *Adaptor) Recv(s *sal.Socket, buf []byte) (int, error) {
	if s == nil || implOf(s) == nil {
		return 0, sal.ErrNullPointer
	}
	if s.Family == sal.SocketDgram {
		glog.Error("ns_sal: recv() not supported with SOCKET_DGRAM")
		return 0, sal.ErrBadFamily
	}
	if err := recvValidate(s, buf); err != nil {
		return 0, err
	}
	return copyStream(s, buf), nil
}

// RecvFrom reads at most one datagram. If buf is shorter than the datagram
// the rest is returned by the following calls.
func (a *Adaptor) RecvFrom(s *sal.Socket, buf []byte) (int, sal.Addr, uint16, error) {
	if s == nil || implOf(s) == nil {
		return 0, sal.Addr{}, 0, sal.ErrNullPointer
	}
	if s.Family == sal.SocketStream {
		glog.Error("ns_sal: recv_from() not supported with SOCKET_STREAM")
		return 0, sal.Addr{}, 0, sal.ErrBadFamily
	}
	if err := recvValidate(s, buf); err != nil {
		return 0, sal.Addr{}, 0, err
	}
	n, from := copyDatagram(s, buf)
	addr, port := toPortable(&from)
	return n, addr, port, nil
}

func (a *Adaptor) Str2Addr(s *sal.Socket, addr *sal.Addr, str string) error {
	glog.V(2).Infof("ns_sal: str2addr() %s", str)
	if s == nil || addr == nil {
		return sal.ErrNullPointer
	}
	if s.Stack != sal.StackNanostackIPv6 {
		return sal.ErrBadStack
	}
	parsed, err := parseAddress(str)
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// Resolve does no name lookup: name must be a numeric address, and the DNS
// event is delivered before Resolve returns.
func (a *Adaptor) Resolve(s *sal.Socket, name string) error {
	if s == nil || implOf(s) == nil {
		return sal.ErrNullPointer
	}
	addr, err := parseAddress(name)
	if err != nil {
		return err
	}
	callbackNameResolved(s, name, addr)
	return nil
}

func (a *Adaptor) IsConnected(s *sal.Socket) bool {
	if s == nil || s.Family != sal.SocketStream {
		// Datagram sockets cannot be connected in the mesh.
		return false
	}
	return s.Status&sal.StatusConnected != 0
}

func (a *Adaptor) IsBound(s *sal.Socket) bool {
	return s != nil && s.Status&sal.StatusBound != 0
}

func periodicTask() {}

// PeriodicTask returns the housekeeping task for stream sockets. There is
// nothing to do yet, so it is a no-op that never needs to run.
func (a *Adaptor) PeriodicTask(s *sal.Socket) func() {
	glog.V(2).Info("ns_sal: periodic_task()")
	if s != nil && s.Family == sal.SocketStream {
		return periodicTask
	}
	return nil
}

func (a *Adaptor) PeriodicInterval(s *sal.Socket) uint32 {
	glog.V(2).Info("ns_sal: periodic_interval()")
	if s != nil && s.Family == sal.SocketStream {
		return 0xffffffff
	}
	return 0
}

func (a *Adaptor) StartListen(s *sal.Socket, backlog uint32) error {
	glog.Error("ns_sal: start_listen() not implemented")
	return sal.ErrUnimplemented
}

func (a *Adaptor) StopListen(s *sal.Socket) error {
	glog.Error("ns_sal: stop_listen() not implemented")
	return sal.ErrUnimplemented
}

func (a *Adaptor) Accept(s *sal.Socket, h sal.Handler) error {
	glog.Error("ns_sal: accept() not implemented")
	return sal.ErrUnimplemented
}

func (a *Adaptor) Reject(s *sal.Socket) error {
	return sal.ErrUnimplemented
}

func (a *Adaptor) LocalAddr(s *sal.Socket, addr *sal.Addr) error {
	if s == nil || addr == nil {
		return sal.ErrNullPointer
	}
	return sal.ErrUnimplemented
}

func (a *Adaptor) RemoteAddr(s *sal.Socket, addr *sal.Addr) error {
	if s == nil || addr == nil {
		return sal.ErrNullPointer
	}
	return sal.ErrUnimplemented
}

func (a *Adaptor) LocalPort(s *sal.Socket) (uint16, error) {
	if s == nil {
		return 0, sal.ErrNullPointer
	}
	return 0, sal.ErrUnimplemented
}

func (a *Adaptor) RemotePort(s *sal.Socket) (uint16, error) {
	if s == nil {
		return 0, sal.ErrNullPointer
	}
	return 0, sal.ErrUnimplemented
}
