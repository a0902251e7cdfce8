package meshsal

import (
	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// The callbacks below finish every change to socket state before the
// application handler runs, so a handler may call back into the adaptor.

func callbackNameResolved(s *sal.Socket, name string, addr sal.Addr) {
	sal.SendEvent(s, &sal.Event{
		Kind:   sal.EventDNS,
		Sock:   s,
		Domain: name,
		Addr:   addr,
	})
}

// callbackDataReceived queues buf, if any, and reports rx done.
func callbackDataReceived(s *sal.Socket, buf *dataBuffer) {
	appendBuffer(s, buf)
	sal.SendEvent(s, &sal.Event{Kind: sal.EventRxDone, Sock: s})
}

func callbackTxDone(s *sal.Socket, sent int) {
	sal.SendEvent(s, &sal.Event{Kind: sal.EventTxDone, Sock: s, SentBytes: sent})
}

func callbackTxError(s *sal.Socket, cause meshstack.EventType) {
	sal.SendEvent(s, &sal.Event{
		Kind:       sal.EventTxError,
		Sock:       s,
		Err:        sal.ErrUnknown,
		NativeCode: int(cause),
	})
}

func callbackConnect(s *sal.Socket) {
	s.Status |= sal.StatusConnected
	sal.SendEvent(s, &sal.Event{Kind: sal.EventConnect, Sock: s})
}

func callbackDisconnect(s *sal.Socket) {
	s.Status &^= sal.StatusConnected
	sal.SendEvent(s, &sal.Event{Kind: sal.EventDisconnect, Sock: s})
}

func callbackPendingConnection(s *sal.Socket) {
	s.Status |= sal.StatusConnected
	sal.SendEvent(s, &sal.Event{Kind: sal.EventAccept, Sock: s})
}
