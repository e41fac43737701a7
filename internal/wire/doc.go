// Package wire builds and parses the IPv4 payloads a trace probe needs:
// ICMP Echo Request, UDP, and TCP SYN outbound, and ICMP Echo Reply, Time
// Exceeded, and Destination Unreachable inbound. It does no socket I/O;
// internal/channel owns the sockets and calls into this package to
// serialise outgoing bytes and to recover a CorrelationKey from incoming
// ones.
package wire
