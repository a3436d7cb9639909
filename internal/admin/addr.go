package admin

import (
	"net/netip"
	"strconv"
	"strings"
)

// parseCIDR parses "ip" or "ip/bits" (§6 CLIENTS example: "192.0.2.17/32")
// returning the address and prefix length; an address with no "/bits"
// suffix is treated as a full-length host prefix.
func parseCIDR(s string) (netip.Addr, int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, 0, false
	}
	addrPart, bitsPart, hasSlash := strings.Cut(s, "/")
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return netip.Addr{}, 0, false
	}
	if !hasSlash {
		return addr, addr.BitLen(), true
	}
	bits, err := strconv.Atoi(bitsPart)
	if err != nil || bits < 0 || bits > addr.BitLen() {
		return netip.Addr{}, 0, false
	}
	return addr, bits, true
}

// parseAddress is parseCIDR's single-address counterpart, used where a
// prefix length is accepted but not otherwise consulted (CLIENTS add).
func parseAddress(s string) (netip.Addr, int, bool) {
	return parseCIDR(s)
}
