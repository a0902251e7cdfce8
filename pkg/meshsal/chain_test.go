package meshsal

import (
	"bytes"
	"testing"

	"MESH-SAL/pkg/sal"
)

func TestPartialReadKeepsHead(t *testing.T) {
	for _, capacity := range []int{1, 4, 9} {
		s := &sal.Socket{}
		data := payload(10, 0x30)
		appendBuffer(s, &dataBuffer{addr: nativeAddr(1, 1), payload: append([]byte(nil), data...)})
		appendBuffer(s, &dataBuffer{addr: nativeAddr(2, 2), payload: payload(3, 0)})
		head := chainOf(s).head

		dest := make([]byte, capacity)
		n, _ := copyDatagram(s, dest)
		if n != capacity {
			t.Errorf("capacity %d: copied %d", capacity, n)
		}
		if chainOf(s).head != head {
			t.Fatalf("capacity %d: head changed after a partial read", capacity)
		}
		if head.length() != len(data)-capacity || !bytes.Equal(head.payload, data[capacity:]) {
			t.Errorf("capacity %d: remaining %x, want %x", capacity, head.payload, data[capacity:])
		}
	}
}

func TestAppendNilIsNotification(t *testing.T) {
	s := &sal.Socket{}
	appendBuffer(s, nil)
	if s.RxBufChain != nil {
		t.Errorf("nil buffer created a chain")
	}
	b := &dataBuffer{payload: []byte{1}}
	appendBuffer(s, b)
	appendBuffer(s, nil)
	if c := chainOf(s); c.head != b || c.tail != b {
		t.Errorf("nil buffer changed the chain")
	}
}

func TestStreamDrainLeavesAtMostOnePartial(t *testing.T) {
	sizes := []int{3, 4, 5, 6}
	for capacity := 1; capacity <= 20; capacity++ {
		s := &sal.Socket{}
		var all []byte
		for i, size := range sizes {
			chunk := payload(size, byte(i*16))
			all = append(all, chunk...)
			appendBuffer(s, &dataBuffer{payload: chunk})
		}
		dest := make([]byte, capacity)
		n := copyStream(s, dest)

		want := capacity
		if want > len(all) {
			want = len(all)
		}
		if n != want || !bytes.Equal(dest[:n], all[:n]) {
			t.Errorf("capacity %d: copied %d bytes %x", capacity, n, dest[:n])
		}

		remaining := 0
		if c := chainOf(s); c != nil {
			for b := c.head; b != nil; b = b.next {
				remaining += b.length()
			}
			var rest []byte
			for b := c.head; b != nil; b = b.next {
				rest = append(rest, b.payload...)
			}
			if !bytes.Equal(rest, all[n:]) {
				t.Errorf("capacity %d: chain holds %x, want %x", capacity, rest, all[n:])
			}
		}
		if remaining != len(all)-n {
			t.Errorf("capacity %d: %d bytes left, want %d", capacity, remaining, len(all)-n)
		}
	}
}

func TestReleaseChain(t *testing.T) {
	s := &sal.Socket{}
	bufs := []*dataBuffer{{payload: []byte{1}}, {payload: []byte{2}}, {payload: []byte{3}}}
	for _, b := range bufs {
		appendBuffer(s, b)
	}
	releaseChain(s)
	if s.RxBufChain != nil {
		t.Errorf("chain still attached")
	}
	for i, b := range bufs {
		if b.next != nil || b.payload != nil {
			t.Errorf("buffer %d still linked", i)
		}
	}
	releaseChain(s)
}
