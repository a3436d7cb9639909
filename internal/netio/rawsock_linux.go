//go:build linux

package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// -------------------------------------------------------------------------
// LinuxPacketConn
// -------------------------------------------------------------------------

// LinuxPacketConn implements PacketConn over a plain UDP socket, with
// SO_REUSEPORT, outbound TTL, and SO_BINDTODEVICE applied per Options —
// the platform socket plumbing carried over from the donor's listener
// almost unchanged, minus the GTSM/ancillary-data machinery that was
// specific to BFD's control-packet transport.
type LinuxPacketConn struct {
	conn      *net.UDPConn
	localAddr netip.AddrPort

	mu     sync.Mutex
	closed bool
}

// ReadPacket reads a single datagram from the UDP socket.
func (c *LinuxPacketConn) ReadPacket(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("netio: read: %w", err)
	}
	return n, addr, nil
}

// WritePacket sends a datagram to dst.
func (c *LinuxPacketConn) WritePacket(buf []byte, dst netip.AddrPort) error {
	_, err := c.conn.WriteToUDPAddrPort(buf, dst)
	if err != nil {
		return fmt.Errorf("netio: write to %s: %w", dst, err)
	}
	return nil
}

// Close releases the underlying socket.
func (c *LinuxPacketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("netio: close: %w", err)
	}
	return nil
}

// LocalAddr returns the local address and port the socket is bound to.
func (c *LinuxPacketConn) LocalAddr() netip.AddrPort {
	return c.localAddr
}

// -------------------------------------------------------------------------
// Constructors
// -------------------------------------------------------------------------

// ListenUDP binds a UDP socket at laddr with the given Options. Supports
// both IPv4 and IPv6; the address family is taken from laddr itself.
func ListenUDP(ctx context.Context, laddr netip.AddrPort, opts Options) (*LinuxPacketConn, error) {
	isIPv6 := laddr.Addr().Is6() && !laddr.Addr().Is4In6()

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c, opts, isIPv6)
		},
	}

	network := "udp4"
	if isIPv6 {
		network = "udp6"
	}

	pc, err := lc.ListenPacket(ctx, network, laddr.String())
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", laddr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		closeErr := pc.Close()
		return nil, errors.Join(
			fmt.Errorf("netio: listen %s: %w", laddr, ErrUnexpectedConnType),
			closeErr,
		)
	}

	local, _ := netip.ParseAddrPort(conn.LocalAddr().String())
	return &LinuxPacketConn{conn: conn, localAddr: local}, nil
}

// DialUDP opens a UDP socket for sending, optionally bound to laddr (the
// zero value lets the kernel pick an ephemeral port), with the given
// Options applied for outbound traffic.
func DialUDP(ctx context.Context, laddr netip.AddrPort, opts Options) (*LinuxPacketConn, error) {
	isIPv6 := laddr.Addr().Is6() && !laddr.Addr().Is4In6()

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c, opts, isIPv6)
		},
	}

	network := "udp4"
	if isIPv6 {
		network = "udp6"
	}

	bind := laddr.String()
	if !laddr.IsValid() {
		bind = ":0"
	}

	pc, err := lc.ListenPacket(ctx, network, bind)
	if err != nil {
		return nil, fmt.Errorf("netio: dial %s: %w", laddr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		closeErr := pc.Close()
		return nil, errors.Join(
			fmt.Errorf("netio: dial %s: %w", laddr, ErrUnexpectedConnType),
			closeErr,
		)
	}

	local, _ := netip.ParseAddrPort(conn.LocalAddr().String())
	return &LinuxPacketConn{conn: conn, localAddr: local}, nil
}

// -------------------------------------------------------------------------
// Socket option helpers
// -------------------------------------------------------------------------

func setSocketOpts(c syscall.RawConn, opts Options, isIPv6 bool) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		intFD := int(fd)
		if isIPv6 {
			sockErr = applySockOptsV6(intFD, opts)
		} else {
			sockErr = applySockOptsV4(intFD, opts)
		}
	})
	if err != nil {
		return fmt.Errorf("netio: raw conn control: %w", err)
	}

	return sockErr
}

func applySockOptsCommon(fd int, opts Options) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("netio: set SO_REUSEADDR: %w", err)
	}

	if opts.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return fmt.Errorf("netio: set SO_REUSEPORT: %w", err)
		}
	}

	if opts.IfName != "" {
		if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, opts.IfName); err != nil {
			return fmt.Errorf("netio: set SO_BINDTODEVICE(%s): %w", opts.IfName, err)
		}
	}

	return nil
}

// applySockOptsV4 sets IPv4-specific socket options on the file descriptor.
func applySockOptsV4(fd int, opts Options) error {
	if err := applySockOptsCommon(fd, opts); err != nil {
		return err
	}

	if opts.TTL > 0 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, opts.TTL); err != nil {
			return fmt.Errorf("netio: set IP_TTL: %w", err)
		}
	}

	return nil
}

// applySockOptsV6 sets IPv6-specific socket options on the file descriptor.
func applySockOptsV6(fd int, opts Options) error {
	if err := applySockOptsCommon(fd, opts); err != nil {
		return err
	}

	if opts.TTL > 0 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, opts.TTL); err != nil {
			return fmt.Errorf("netio: set IPV6_UNICAST_HOPS: %w", err)
		}
	}

	return nil
}
