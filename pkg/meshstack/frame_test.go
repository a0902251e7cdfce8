package meshstack

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
)

func addr(last byte) tcpip.Address {
	raw := make([]byte, header.IPv6AddressSize)
	raw[0] = 0xfd
	raw[15] = last
	return tcpip.Address(raw)
}

func TestFrameRoundTrip(t *testing.T) {
	for _, f := range []*Frame{
		{Proto: ProtocolUDP, Src: addr(1), Dst: addr(2), SrcPort: 49152, DstPort: 5683, Payload: []byte("hello mesh")},
		{Proto: ProtocolUDP, Src: addr(1), Dst: addr(2), SrcPort: 1, DstPort: 2, Payload: []byte{}},
		{Proto: ProtocolTCP, Src: addr(3), Dst: addr(4), SrcPort: 80, DstPort: 49153, Flags: header.TCPFlagSyn | header.TCPFlagAck, SeqNum: 7, AckNum: 1000, Payload: []byte{}},
		{Proto: ProtocolTCP, Src: addr(3), Dst: addr(4), SrcPort: 80, DstPort: 49153, Flags: header.TCPFlagPsh | header.TCPFlagAck, SeqNum: 1, AckNum: 2, Payload: []byte("odd")},
	} {
		packet, err := SerializeFrame(f)
		if err != nil {
			t.Fatalf("SerializeFrame(%+v) = %v", f, err)
		}
		got, err := DeserializeFrame(packet)
		if err != nil {
			t.Fatalf("DeserializeFrame() = %v", err)
		}
		if diff := cmp.Diff(f, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("frame mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFrameCorruption(t *testing.T) {
	packet, err := SerializeFrame(&Frame{Proto: ProtocolUDP, Src: addr(1), Dst: addr(2), SrcPort: 1, DstPort: 2, Payload: []byte("data")})
	if err != nil {
		t.Fatal(err)
	}
	packet[len(packet)-1] ^= 0x40
	if _, err := DeserializeFrame(packet); err == nil {
		t.Errorf("DeserializeFrame() accepted a corrupted packet")
	}
	if _, err := DeserializeFrame(packet[:10]); err == nil {
		t.Errorf("DeserializeFrame() accepted a short packet")
	}
}

func TestSerializeFrameErrors(t *testing.T) {
	if _, err := SerializeFrame(&Frame{Proto: 1, Src: addr(1), Dst: addr(2)}); err == nil {
		t.Errorf("SerializeFrame() accepted ICMP")
	}
	if _, err := SerializeFrame(&Frame{Proto: ProtocolUDP, Src: "\x0a\x00\x00\x01", Dst: addr(2)}); err == nil {
		t.Errorf("SerializeFrame() accepted an IPv4 source")
	}
}
