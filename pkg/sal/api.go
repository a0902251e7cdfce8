// Package sal is the portable socket layer applications program against.
// Stack adaptors implement API and register themselves with RegisterStack.
package sal

import (
	"sync"

	"github.com/pkg/errors"
)

// API is the operation table a stack adaptor registers.
type API interface {
	Stack() StackID
	Version() int

	Init() error
	Create(s *Socket, af AddressFamily, pf ProtoFamily, h Handler) error
	Destroy(s *Socket) error
	Close(s *Socket) error
	PeriodicTask(s *Socket) func()
	PeriodicInterval(s *Socket) uint32
	Resolve(s *Socket, name string) error
	Connect(s *Socket, addr *Addr, port uint16) error
	Str2Addr(s *Socket, addr *Addr, str string) error
	Bind(s *Socket, addr *Addr, port uint16) error
	StartListen(s *Socket, backlog uint32) error
	StopListen(s *Socket) error
	Accept(s *Socket, h Handler) error
	Reject(s *Socket) error
	Send(s *Socket, buf []byte) error
	SendTo(s *Socket, buf []byte, addr *Addr, port uint16) error
	Recv(s *Socket, buf []byte) (int, error)
	RecvFrom(s *Socket, buf []byte) (int, Addr, uint16, error)
	IsConnected(s *Socket) bool
	IsBound(s *Socket) bool
	LocalAddr(s *Socket, addr *Addr) error
	RemoteAddr(s *Socket, addr *Addr) error
	LocalPort(s *Socket) (uint16, error)
	RemotePort(s *Socket) (uint16, error)
}

// Version of the operation table layout. Registration rejects adaptors built
// against another one.
const Version = 1

var registry struct {
	mu   sync.Mutex
	apis [StackMax]API
}

// RegisterStack initializes api and makes it the adaptor for its stack tag.
// A later registration for the same tag replaces the earlier one.
func RegisterStack(api API) error {
	if api == nil {
		return ErrNullPointer
	}
	id := api.Stack()
	if id == StackUninit || id >= StackMax {
		return errors.Wrapf(ErrBadStack, "stack id %d", id)
	}
	if api.Version() != Version {
		return errors.Wrapf(ErrBadStack, "api version %d, want %d", api.Version(), Version)
	}
	if err := api.Init(); err != nil {
		return errors.Wrap(err, "init stack")
	}
	registry.mu.Lock()
	registry.apis[id] = api
	registry.mu.Unlock()
	return nil
}

// GetAPI returns the adaptor registered for id, or nil.
func GetAPI(id StackID) API {
	if id >= StackMax {
		return nil
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.apis[id]
}
