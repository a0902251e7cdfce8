package meshsal

import (
	"github.com/golang/glog"
	"github.com/google/netstack/tcpip"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// sockData is the implementation handle kept in sal.Socket.Impl.
type sockData struct {
	socketID          int8
	securitySessionID int8
}

func implOf(s *sal.Socket) *sockData {
	data, _ := s.Impl.(*sockData)
	return data
}

// contextTable maps stack socket ids back to the socket that opened them so
// stack callbacks reach the right application handler.
type contextTable [meshstack.SocketsMax]*sal.Socket

func (t *contextTable) bind(id int8, s *sal.Socket) bool {
	if id < 0 || int(id) >= len(t) {
		return false
	}
	t[id] = s
	return true
}

func (t *contextTable) lookup(id int8) *sal.Socket {
	if id < 0 || int(id) >= len(t) {
		return nil
	}
	return t[id]
}

// clear unbinds id if it still belongs to s.
func (t *contextTable) clear(id int8, s *sal.Socket) {
	if id < 0 || int(id) >= len(t) || t[id] != s {
		return
	}
	t[id] = nil
}

func (a *Adaptor) socketOpen(proto tcpip.TransportProtocolNumber, identifier uint16, s *sal.Socket) *sockData {
	glog.V(2).Infof("ns_wrap: socket_open() proto=%d", proto)
	data := &sockData{
		socketID: a.stack.SocketOpen(proto, identifier, a.socketCallback),
	}
	return a.socketValidate(data, s)
}

// socketValidate records the context of a freshly opened socket. An id the
// context table cannot hold means the stack is configured for more sockets
// than the adaptor; the stack socket is released and no handle is returned.
func (a *Adaptor) socketValidate(data *sockData, s *sal.Socket) *sockData {
	if data.socketID < 0 {
		return data
	}
	if !a.contexts.bind(data.socketID, s) {
		glog.Errorf("ns_wrap: invalid socket id %d, table holds %d", data.socketID, len(a.contexts))
		a.stack.SocketFree(data.socketID)
		return nil
	}
	data.securitySessionID = 0
	return data
}

func (a *Adaptor) socketFree(data *sockData, s *sal.Socket) int8 {
	glog.V(2).Infof("ns_wrap: socket_free() sock=%d", data.socketID)
	a.contexts.clear(data.socketID, s)
	return a.stack.SocketFree(data.socketID)
}

// socketCallback is handed to the stack for every socket the adaptor opens.
func (a *Adaptor) socketCallback(ev meshstack.Event) {
	glog.V(2).Infof("ns_wrap: socket_callback() sock=%d, event=%s, interface=%d, data len=%d",
		ev.SocketID, ev.Type, ev.InterfaceID, ev.DataLen)

	s := a.contexts.lookup(ev.SocketID)
	if s == nil {
		glog.Warningf("ns_wrap: %s for unknown socket %d", ev.Type, ev.SocketID)
		return
	}

	switch ev.Type {
	case meshstack.EventData:
		glog.V(1).Infof("ns_wrap: SOCKET_DATA, sock=%d, bytes=%d", ev.SocketID, ev.DataLen)
		a.dataReceived(s, ev)
	case meshstack.EventBindDone:
		callbackConnect(s)
	case meshstack.EventBindFail, meshstack.EventBindAuthFail:
		glog.V(1).Infof("ns_wrap: %s, sock=%d", ev.Type, ev.SocketID)
	case meshstack.EventIncomingConnection:
		callbackPendingConnection(s)
	case meshstack.EventConnectClosed:
		callbackDisconnect(s)
	case meshstack.EventTxDone:
		glog.V(1).Infof("ns_wrap: SOCKET_TX_DONE, %d bytes sent", ev.DataLen)
		callbackTxDone(s, int(ev.DataLen))
	default:
		glog.V(1).Infof("ns_wrap: %s, sock=%d", ev.Type, ev.SocketID)
		callbackTxError(s, ev.Type)
	}
}

// dataReceived pulls the announced bytes out of the stack. A zero length
// event only tells the application that unread data is still pending.
func (a *Adaptor) dataReceived(s *sal.Socket, ev meshstack.Event) {
	if ev.DataLen == 0 {
		callbackDataReceived(s, nil)
		return
	}
	buf := &dataBuffer{payload: make([]byte, ev.DataLen)}
	n := a.stack.SocketRead(ev.SocketID, &buf.addr, buf.payload)
	if n < 0 {
		glog.Errorf("ns_wrap: socket_read(%d) = %d", ev.SocketID, n)
		return
	}
	if n == 0 {
		callbackDataReceived(s, nil)
		return
	}
	buf.payload = buf.payload[:n]
	callbackDataReceived(s, buf)
}
