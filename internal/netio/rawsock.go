package netio

import (
	"errors"
	"net/netip"
)

// -------------------------------------------------------------------------
// Transport Options
// -------------------------------------------------------------------------

// Options configures a listener or sender socket's platform-level
// behavior; every field is optional and has a sensible zero value.
type Options struct {
	// ReusePort sets SO_REUSEPORT, letting multiple listener modules
	// bind the same address:port for load-sharing across instances.
	ReusePort bool

	// TTL sets the outbound unicast TTL / hop limit. Zero leaves the
	// kernel default in place.
	TTL int

	// IfName binds the socket to a specific network device
	// (SO_BINDTODEVICE). Empty means "any interface".
	IfName string
}

// -------------------------------------------------------------------------
// PacketConn Interface
// -------------------------------------------------------------------------

// PacketConn abstracts datagram send/receive over a UDP socket. The
// interface is intentionally minimal so a test can substitute a
// net.PacketConn-backed fake without elevated socket privileges.
type PacketConn interface {
	// ReadPacket reads a single datagram into buf, returning the number
	// of bytes read and the sender's address.
	ReadPacket(buf []byte) (n int, src netip.AddrPort, err error)

	// WritePacket sends buf to dst.
	WritePacket(buf []byte, dst netip.AddrPort) error

	// Close releases the underlying socket.
	Close() error

	// LocalAddr returns the address and port the socket is bound to.
	LocalAddr() netip.AddrPort
}

// -------------------------------------------------------------------------
// Sentinel Errors
// -------------------------------------------------------------------------

var (
	// ErrSocketClosed indicates an operation on a closed socket.
	ErrSocketClosed = errors.New("netio: socket closed")

	// ErrUnexpectedConnType indicates net.ListenPacket returned a
	// connection type other than *net.UDPConn.
	ErrUnexpectedConnType = errors.New("netio: unexpected connection type from ListenPacket")
)
