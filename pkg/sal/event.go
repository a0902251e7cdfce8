package sal

type EventKind uint8

const (
	EventError EventKind = iota
	EventRxDone
	EventTxDone
	EventTxError
	EventConnect
	EventDisconnect
	EventAccept
	EventDNS
)

var eventNames = [...]string{
	EventError:      "error",
	EventRxDone:     "rx_done",
	EventTxDone:     "tx_done",
	EventTxError:    "tx_error",
	EventConnect:    "connect",
	EventDisconnect: "disconnect",
	EventAccept:     "accept",
	EventDNS:        "dns",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event describes one asynchronous socket notification.
type Event struct {
	Kind EventKind
	Sock *Socket
	Err  error

	// SentBytes is set for EventTxDone.
	SentBytes int

	// Domain and Addr are set for EventDNS.
	Domain string
	Addr   Addr

	// NativeCode is the stack's own event code for EventTxError, so that
	// distinct stack faults stay distinguishable.
	NativeCode int
}
