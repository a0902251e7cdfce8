package meshsal

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

func TestAddressTranslation(t *testing.T) {
	portable := sal.Addr{Type: sal.StackNanostackIPv6, IPv6BE: [16]byte{0xfe, 0x80, 14: 0xbe, 15: 0xef}}
	native := toNative(&portable, 5683)
	if native.Type != meshstack.AddressIPv6 || native.Identifier != 5683 || len(native.Addr) != 16 {
		t.Fatalf("toNative() = %+v", native)
	}

	back, port := toPortable(&native)
	if diff := cmp.Diff(portable, back); diff != "" || port != 5683 {
		t.Errorf("round trip mismatch (-want +got):\n%s port %d", diff, port)
	}

	// Both native address types carry the same portable tag.
	native.Type = meshstack.AddressIPv4
	if back, _ := toPortable(&native); back.Type != sal.StackNanostackIPv6 {
		t.Errorf("IPv4 tagged address got stack %d", back.Type)
	}
}

func TestParseAddress(t *testing.T) {
	for _, test := range []struct {
		in   string
		ok   bool
		last byte
	}{
		{in: "fd00::1", ok: true, last: 1},
		{in: "fe80::ff%wpan0", ok: true, last: 0xff},
		{in: "::", ok: true},
		{in: "192.168.0.1"},
		{in: ""},
		{in: "fd00::1::2"},
	} {
		addr, err := parseAddress(test.in)
		if (err == nil) != test.ok {
			t.Errorf("parseAddress(%q) error = %v", test.in, err)
			continue
		}
		if err != nil {
			if sal.KindOf(err) != sal.ErrBadAddress {
				t.Errorf("parseAddress(%q) kind = %v", test.in, sal.KindOf(err))
			}
			continue
		}
		if addr.Type != sal.StackNanostackIPv6 || addr.IPv6BE[15] != test.last {
			t.Errorf("parseAddress(%q) = %+v", test.in, addr)
		}
	}
}
