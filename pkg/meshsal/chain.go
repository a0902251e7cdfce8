package meshsal

import (
	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// dataBuffer is one received datagram, or one chunk of stream data, waiting
// for the application. payload always holds exactly the unread bytes.
type dataBuffer struct {
	next    *dataBuffer
	addr    meshstack.Address
	payload []byte
}

func (b *dataBuffer) length() int {
	return len(b.payload)
}

// rxChain is the FIFO of pending buffers hung off sal.Socket.RxBufChain. The
// socket holds a chain only while at least one buffer is queued.
type rxChain struct {
	head *dataBuffer
	tail *dataBuffer
}

func chainOf(s *sal.Socket) *rxChain {
	c, _ := s.RxBufChain.(*rxChain)
	return c
}

// appendBuffer queues b at the tail. A nil b leaves the chain alone.
func appendBuffer(s *sal.Socket, b *dataBuffer) {
	if b == nil {
		return
	}
	b.next = nil
	c := chainOf(s)
	if c == nil {
		c = &rxChain{}
		s.RxBufChain = c
	}
	if c.tail == nil {
		c.head = b
	} else {
		c.tail.next = b
	}
	c.tail = b
}

// advance drops the head buffer.
func advance(s *sal.Socket, c *rxChain) {
	head := c.head
	c.head = head.next
	head.next = nil
	head.payload = nil
	if c.head == nil {
		c.tail = nil
		s.RxBufChain = nil
	}
}

// consume moves up to len(dest) bytes out of b. A partially read buffer keeps
// its remaining bytes at the front of payload.
func (b *dataBuffer) consume(dest []byte) int {
	n := copy(dest, b.payload)
	b.payload = b.payload[n:]
	return n
}

// copyDatagram serves dest from the head buffer only, so a read never
// crosses a datagram boundary. A buffer larger than dest stays at the head
// with its remainder.
func copyDatagram(s *sal.Socket, dest []byte) (int, meshstack.Address) {
	c := chainOf(s)
	head := c.head
	from := head.addr
	n := head.consume(dest)
	if head.length() == 0 {
		advance(s, c)
	}
	return n, from
}

// copyStream fills dest from as many buffers as needed.
func copyStream(s *sal.Socket, dest []byte) int {
	copied := 0
	for c := chainOf(s); c != nil && copied < len(dest); c = chainOf(s) {
		copied += c.head.consume(dest[copied:])
		if c.head.length() == 0 {
			advance(s, c)
		}
	}
	return copied
}

// releaseChain drops every queued buffer.
func releaseChain(s *sal.Socket) {
	c := chainOf(s)
	for c != nil && c.head != nil {
		advance(s, c)
	}
	s.RxBufChain = nil
}

func recvValidate(s *sal.Socket, buf []byte) error {
	if s == nil || buf == nil || implOf(s) == nil {
		return sal.ErrNullPointer
	}
	if len(buf) == 0 {
		return sal.ErrSize
	}
	if chainOf(s) == nil {
		return sal.ErrWouldBlock
	}
	return nil
}
