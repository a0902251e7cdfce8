// Package meshstack defines the socket primitives of the 6LoWPAN mesh stack
// that the adaptor consumes, plus an in-process simulation of that stack.
//
// The primitives follow the stack's own conventions: numeric socket ids,
// small negative return codes and an asynchronous per-socket callback. The
// simulation carries real IPv6/UDP/TCP headers between nodes attached to a
// Medium but does no routing, retransmission or neighbor discovery.
package meshstack

import (
	"fmt"

	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
)

// SocketsMax bounds the stack's socket id space.
const SocketsMax = 16

// Protocol numbers accepted by SocketOpen.
const (
	ProtocolUDP = header.UDPProtocolNumber
	ProtocolTCP = header.TCPProtocolNumber
)

type AddressType uint8

const (
	AddressIPv6 AddressType = iota
	AddressIPv4
	AddressBroadcast
)

// Address is the stack-native socket address.
type Address struct {
	Type       AddressType
	Addr       tcpip.Address
	Identifier uint16
}

func (a Address) String() string {
	return fmt.Sprintf("[%s]:%d", a.Addr, a.Identifier)
}

// EventType is the kind of a socket event reported through a Callback.
type EventType uint8

const (
	EventData EventType = iota
	EventBindDone
	EventBindFail
	EventBindAuthFail
	EventIncomingConnection
	EventTxFail
	EventConnectClosed
	EventConnectionReset
	EventNoRoute
	EventTxDone
	EventNoRAM
)

var eventTypeNames = [...]string{
	EventData:               "SOCKET_DATA",
	EventBindDone:           "SOCKET_BIND_DONE",
	EventBindFail:           "SOCKET_BIND_FAIL",
	EventBindAuthFail:       "SOCKET_BIND_AUTH_FAIL",
	EventIncomingConnection: "SOCKET_INCOMING_CONNECTION",
	EventTxFail:             "SOCKET_TX_FAIL",
	EventConnectClosed:      "SOCKET_CONNECT_CLOSED",
	EventConnectionReset:    "SOCKET_CONNECTION_RESET",
	EventNoRoute:            "SOCKET_NO_ROUTE",
	EventTxDone:             "SOCKET_TX_DONE",
	EventNoRAM:              "SOCKET_NO_RAM",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("SOCKET_EVENT(%d)", uint8(t))
}

// Event is delivered to a socket's Callback. DataLen is the number of bytes
// readable for EventData and the number of bytes sent for EventTxDone.
type Event struct {
	SocketID    int8
	Type        EventType
	InterfaceID int8
	DataLen     uint16
}

type Callback func(ev Event)

// Stack is the socket interface of the mesh stack.
//
// Return codes:
//
//	SocketOpen:    socket id, or -1 when no socket could be opened.
//	SocketClose:   0; -1 unknown id or wrong socket type; -2 no connection
//	               state; -3 connection not established.
//	SocketFree:    0; -1 unknown id.
//	SocketConnect: 0; -1 bad id or address; -2 no memory; -5 wrong socket type.
//	SocketBind:    0; -1 bad id; -2 port in use; -3 address not local.
//	SocketSend:    0; -1 bad id; -2 no memory or payload over MaxPayload;
//	               -3 not established; -5 wrong socket type; -6 empty packet.
//	SocketSendTo:  0; -1 bad id; -2 no memory or payload over MaxPayload;
//	               -5 wrong socket type; -6 empty packet.
//	SocketRead:    bytes read, or -1 for an unknown id.
type Stack interface {
	SocketOpen(proto tcpip.TransportProtocolNumber, identifier uint16, cb Callback) int8
	SocketClose(id int8) int8
	SocketFree(id int8) int8
	SocketConnect(id int8, addr *Address) int8
	SocketBind(id int8, addr *Address) int8
	SocketSend(id int8, buf []byte) int8
	SocketSendTo(id int8, addr *Address, buf []byte) int8
	SocketRead(id int8, addr *Address, buf []byte) int16

	// Run dispatches the events pending when it is called.
	Run()
}
