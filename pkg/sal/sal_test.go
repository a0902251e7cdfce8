package sal

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

type fakeAPI struct {
	API
	id      StackID
	version int
	initErr error
	inits   int
}

func (f *fakeAPI) Stack() StackID {
	return f.id
}

func (f *fakeAPI) Version() int {
	return f.version
}

func (f *fakeAPI) Init() error {
	f.inits++
	return f.initErr
}

func TestRegisterStack(t *testing.T) {
	if err := RegisterStack(nil); !errors.Is(err, ErrNullPointer) {
		t.Errorf("RegisterStack(nil) = %v", err)
	}
	for _, api := range []*fakeAPI{
		{id: StackUninit, version: Version},
		{id: StackMax, version: Version},
		{id: StackNanostackIPv6, version: Version + 1},
	} {
		if err := RegisterStack(api); KindOf(err) != ErrBadStack {
			t.Errorf("RegisterStack(stack %d, version %d) = %v", api.id, api.version, err)
		}
		if api.inits != 0 {
			t.Errorf("rejected adaptor was initialized")
		}
	}

	failing := &fakeAPI{id: StackNanostackIPv6, version: Version, initErr: ErrBadAlloc}
	if err := RegisterStack(failing); !errors.Is(err, ErrBadAlloc) {
		t.Errorf("RegisterStack() with failing Init = %v", err)
	}

	first := &fakeAPI{id: StackNanostackIPv6, version: Version}
	second := &fakeAPI{id: StackNanostackIPv6, version: Version}
	for _, api := range []*fakeAPI{first, second} {
		if err := RegisterStack(api); err != nil {
			t.Fatalf("RegisterStack() = %v", err)
		}
	}
	if GetAPI(StackNanostackIPv6) != second || first.inits != 1 || second.inits != 1 {
		t.Errorf("last registration does not win")
	}
	if GetAPI(StackMax) != nil {
		t.Errorf("GetAPI(StackMax) != nil")
	}
}

func TestKindOf(t *testing.T) {
	for _, test := range []struct {
		err  error
		want Error
	}{
		{nil, ErrNone},
		{ErrWouldBlock, ErrWouldBlock},
		{errors.Wrapf(ErrNoConnection, "socket_close(%d) returned %d", 3, -2), ErrNoConnection},
		{errors.Wrap(errors.Wrap(ErrBadFamily, "inner"), "outer"), ErrBadFamily},
		{errors.New("plain"), ErrUnknown},
	} {
		if got := KindOf(test.err); got != test.want {
			t.Errorf("KindOf(%v) = %v, want %v", test.err, got, test.want)
		}
	}
	if got := Error(200).Error(); got != "socket: error 200" {
		t.Errorf("Error(200) = %q", got)
	}
}

func TestSendEvent(t *testing.T) {
	var seen []EventKind
	s := &Socket{}
	s.Handler = func(e *Event) {
		if s.Event != e {
			t.Errorf("Event not set during the handler")
		}
		seen = append(seen, e.Kind)
	}
	SendEvent(s, &Event{Kind: EventConnect, Sock: s})
	SendEvent(s, &Event{Kind: EventDisconnect, Sock: s})
	SendEvent(nil, &Event{Kind: EventError})
	SendEvent(&Socket{}, &Event{Kind: EventError})

	if diff := cmp.Diff([]EventKind{EventConnect, EventDisconnect}, seen); diff != "" {
		t.Errorf("handled events mismatch (-want +got):\n%s", diff)
	}
	if s.Event != nil {
		t.Errorf("Event left set after delivery")
	}
}

func TestSendEventNested(t *testing.T) {
	s := &Socket{}
	outer := &Event{Kind: EventTxDone, Sock: s}
	inner := &Event{Kind: EventDNS, Sock: s}
	var during []*Event
	s.Handler = func(e *Event) {
		during = append(during, s.Event)
		if e == outer {
			SendEvent(s, inner)
			during = append(during, s.Event)
		}
	}
	SendEvent(s, outer)

	want := []*Event{outer, inner, outer}
	if len(during) != len(want) {
		t.Fatalf("handler saw %d events, want %d", len(during), len(want))
	}
	for i := range want {
		if during[i] != want[i] {
			t.Errorf("step %d: Event = %v, want %v", i, during[i], want[i])
		}
	}
	if s.Event != nil {
		t.Errorf("Event left set after delivery")
	}
}

func TestAddrString(t *testing.T) {
	a := Addr{Type: StackNanostackIPv6, IPv6BE: [16]byte{0xfd, 0x00, 15: 0x02}}
	if got := a.String(); got != "fd00::2" {
		t.Errorf("String() = %q", got)
	}
}
