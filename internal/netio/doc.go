// Package netio provides raw UDP socket abstractions for the
// reflector's listener and sender reference modules (§3, §11 domain
// stack): plain datagram send/receive, not a protocol-specific control
// channel. Platform socket option plumbing (SO_REUSEPORT, outbound TTL)
// lives in the Linux-specific file; it is genuinely a platform concern
// rather than reflector-domain logic.
package netio
