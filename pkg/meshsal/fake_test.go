package meshsal

import (
	"github.com/google/netstack/tcpip"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

type fakeRead struct {
	from    meshstack.Address
	payload []byte
}

// fakeStack hands out socket ids from ids in order and returns the
// configured codes. Data is pushed with deliver.
type fakeStack struct {
	ids   []int8
	cbs   map[int8]meshstack.Callback
	reads map[int8][]fakeRead

	closeRC, freeRC, connectRC, bindRC, sendRC, sendToRC int8

	freed    []int8
	sent     [][]byte
	lastAddr meshstack.Address
}

func newFakeStack(ids ...int8) *fakeStack {
	return &fakeStack{
		ids:   ids,
		cbs:   make(map[int8]meshstack.Callback),
		reads: make(map[int8][]fakeRead),
	}
}

func (f *fakeStack) SocketOpen(proto tcpip.TransportProtocolNumber, identifier uint16, cb meshstack.Callback) int8 {
	if len(f.ids) == 0 {
		return -1
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	f.cbs[id] = cb
	return id
}

func (f *fakeStack) SocketClose(id int8) int8 {
	return f.closeRC
}

func (f *fakeStack) SocketFree(id int8) int8 {
	f.freed = append(f.freed, id)
	return f.freeRC
}

func (f *fakeStack) SocketConnect(id int8, addr *meshstack.Address) int8 {
	f.lastAddr = *addr
	return f.connectRC
}

func (f *fakeStack) SocketBind(id int8, addr *meshstack.Address) int8 {
	f.lastAddr = *addr
	return f.bindRC
}

func (f *fakeStack) SocketSend(id int8, buf []byte) int8 {
	f.sent = append(f.sent, append([]byte(nil), buf...))
	return f.sendRC
}

func (f *fakeStack) SocketSendTo(id int8, addr *meshstack.Address, buf []byte) int8 {
	f.lastAddr = *addr
	f.sent = append(f.sent, append([]byte(nil), buf...))
	return f.sendToRC
}

func (f *fakeStack) SocketRead(id int8, addr *meshstack.Address, buf []byte) int16 {
	pending := f.reads[id]
	if len(pending) == 0 {
		return 0
	}
	f.reads[id] = pending[1:]
	*addr = pending[0].from
	return int16(copy(buf, pending[0].payload))
}

func (f *fakeStack) Run() {}

// deliver queues payload and raises the data event for it.
func (f *fakeStack) deliver(id int8, from meshstack.Address, payload []byte) {
	f.reads[id] = append(f.reads[id], fakeRead{from: from, payload: payload})
	f.event(id, meshstack.EventData, len(payload))
}

func (f *fakeStack) event(id int8, t meshstack.EventType, dataLen int) {
	cb, ok := f.cbs[id]
	if !ok {
		return
	}
	cb(meshstack.Event{SocketID: id, Type: t, DataLen: uint16(dataLen)})
}

// recorder collects the events delivered to a socket.
type recorder struct {
	events []sal.Event
}

func (r *recorder) handle(e *sal.Event) {
	r.events = append(r.events, *e)
}

func (r *recorder) kinds() []sal.EventKind {
	kinds := make([]sal.EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func nativeAddr(last byte, port uint16) meshstack.Address {
	raw := make([]byte, 16)
	raw[0] = 0xfd
	raw[15] = last
	return meshstack.Address{Type: meshstack.AddressIPv6, Addr: tcpip.Address(raw), Identifier: port}
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func openSocket(a *Adaptor, pf sal.ProtoFamily, r *recorder) (*sal.Socket, error) {
	s := &sal.Socket{}
	return s, a.Create(s, sal.AFInet6, pf, r.handle)
}
