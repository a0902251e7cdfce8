package meshstack

import (
	"encoding/binary"

	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

const hopLimit = 64

// Frame is one packet carried by the Medium.
type Frame struct {
	Proto   tcpip.TransportProtocolNumber
	Src     tcpip.Address
	Dst     tcpip.Address
	SrcPort uint16
	DstPort uint16

	// TCP only.
	Flags  uint8
	SeqNum uint32
	AckNum uint32

	Payload []byte
}

func pseudoHeaderSum(proto tcpip.TransportProtocolNumber, src, dst tcpip.Address, length int) uint16 {
	xsum := header.Checksum([]byte(src), 0)
	xsum = header.Checksum([]byte(dst), xsum)
	var tail [8]byte
	binary.BigEndian.PutUint32(tail[0:4], uint32(length))
	tail[7] = uint8(proto)
	return header.Checksum(tail[:], xsum)
}

// SerializeFrame encodes f as an IPv6 packet with a UDP or TCP header.
func SerializeFrame(f *Frame) ([]byte, error) {
	var hdrLen int
	switch f.Proto {
	case header.UDPProtocolNumber:
		hdrLen = header.UDPMinimumSize
	case header.TCPProtocolNumber:
		hdrLen = header.TCPMinimumSize
	default:
		return nil, errors.Errorf("unsupported protocol %d", f.Proto)
	}
	if len(f.Src) != header.IPv6AddressSize || len(f.Dst) != header.IPv6AddressSize {
		return nil, errors.New("frame addresses must be IPv6")
	}
	transportLen := hdrLen + len(f.Payload)
	if transportLen > 0xffff {
		return nil, errors.Errorf("payload too large: %d bytes", len(f.Payload))
	}

	buffer := make([]byte, header.IPv6MinimumSize+transportLen)
	ip := header.IPv6(buffer)
	ip.Encode(&header.IPv6Fields{
		PayloadLength: uint16(transportLen),
		NextHeader:    uint8(f.Proto),
		HopLimit:      hopLimit,
		SrcAddr:       f.Src,
		DstAddr:       f.Dst,
	})

	transport := buffer[header.IPv6MinimumSize:]
	copy(transport[hdrLen:], f.Payload)
	switch f.Proto {
	case header.UDPProtocolNumber:
		udp := header.UDP(transport)
		udp.Encode(&header.UDPFields{
			SrcPort: f.SrcPort,
			DstPort: f.DstPort,
			Length:  uint16(transportLen),
		})
		udp.SetChecksum(^header.Checksum(transport, pseudoHeaderSum(f.Proto, f.Src, f.Dst, transportLen)))
	case header.TCPProtocolNumber:
		tcp := header.TCP(transport)
		tcp.Encode(&header.TCPFields{
			SrcPort:    f.SrcPort,
			DstPort:    f.DstPort,
			SeqNum:     f.SeqNum,
			AckNum:     f.AckNum,
			DataOffset: header.TCPMinimumSize,
			Flags:      f.Flags,
			WindowSize: 0xffff,
		})
		tcp.SetChecksum(^header.Checksum(transport, pseudoHeaderSum(f.Proto, f.Src, f.Dst, transportLen)))
	}
	return buffer, nil
}

// DeserializeFrame parses a packet produced by SerializeFrame and verifies
// its transport checksum.
func DeserializeFrame(buffer []byte) (*Frame, error) {
	if len(buffer) < header.IPv6MinimumSize {
		return nil, errors.Errorf("short packet: %d bytes", len(buffer))
	}
	ip := header.IPv6(buffer)
	transportLen := int(ip.PayloadLength())
	if header.IPv6MinimumSize+transportLen > len(buffer) {
		return nil, errors.Errorf("truncated packet: payload length %d, have %d", transportLen, len(buffer)-header.IPv6MinimumSize)
	}
	transport := buffer[header.IPv6MinimumSize : header.IPv6MinimumSize+transportLen]

	f := &Frame{
		Proto: tcpip.TransportProtocolNumber(ip.NextHeader()),
		Src:   ip.SourceAddress(),
		Dst:   ip.DestinationAddress(),
	}
	if header.Checksum(transport, pseudoHeaderSum(f.Proto, f.Src, f.Dst, transportLen)) != 0xffff {
		return nil, errors.New("bad transport checksum")
	}

	switch f.Proto {
	case header.UDPProtocolNumber:
		if transportLen < header.UDPMinimumSize {
			return nil, errors.New("short UDP header")
		}
		udp := header.UDP(transport)
		f.SrcPort = udp.SourcePort()
		f.DstPort = udp.DestinationPort()
		f.Payload = append([]byte(nil), transport[header.UDPMinimumSize:]...)
	case header.TCPProtocolNumber:
		if transportLen < header.TCPMinimumSize {
			return nil, errors.New("short TCP header")
		}
		tcp := header.TCP(transport)
		offset := int(tcp.DataOffset())
		if offset < header.TCPMinimumSize || offset > transportLen {
			return nil, errors.Errorf("bad TCP data offset %d", offset)
		}
		f.SrcPort = tcp.SourcePort()
		f.DstPort = tcp.DestinationPort()
		f.Flags = tcp.Flags()
		f.SeqNum = tcp.SequenceNumber()
		f.AckNum = tcp.AckNumber()
		f.Payload = append([]byte(nil), transport[offset:]...)
	default:
		return nil, errors.Errorf("unsupported next header %d", f.Proto)
	}
	return f, nil
}
