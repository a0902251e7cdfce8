package meshsal

import (
	"net/netip"

	"github.com/google/netstack/tcpip"
	"github.com/pkg/errors"

	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

func toNative(addr *sal.Addr, port uint16) meshstack.Address {
	return meshstack.Address{
		Type:       meshstack.AddressIPv6,
		Addr:       tcpip.Address(addr.IPv6BE[:]),
		Identifier: port,
	}
}

// toPortable converts a stack address. The portable side has a single tag
// for this stack, so native IPv4 and IPv6 types both map to it.
func toPortable(native *meshstack.Address) (sal.Addr, uint16) {
	addr := sal.Addr{Type: sal.StackNanostackIPv6}
	copy(addr.IPv6BE[:], string(native.Addr))
	return addr, native.Identifier
}

// parseAddress accepts a numeric IPv6 address.
func parseAddress(str string) (sal.Addr, error) {
	ip, err := netip.ParseAddr(str)
	if err != nil {
		return sal.Addr{}, errors.Wrap(sal.ErrBadAddress, err.Error())
	}
	if !ip.Is6() {
		return sal.Addr{}, errors.Wrapf(sal.ErrBadAddress, "%s is not an IPv6 address", str)
	}
	return sal.Addr{Type: sal.StackNanostackIPv6, IPv6BE: ip.WithZone("").As16()}, nil
}
