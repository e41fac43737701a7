package wire

import "encoding/binary"

// ICMPv4 message types this package builds or interprets.
const (
	ICMPTypeEchoReply    uint8 = 0
	ICMPTypeUnreachable  uint8 = 3
	ICMPTypeEchoRequest  uint8 = 8
	ICMPTypeTimeExceeded uint8 = 11
)

// ICMPKind is the set of inbound message shapes the Prober cares about.
type ICMPKind uint8

const (
	KindEchoReply ICMPKind = iota
	KindTimeExceeded
	KindDestinationUnreachable
)

// BuildICMPEcho serialises an ICMP Echo Request with the given identifier,
// sequence, and payload. The checksum is computed over the whole message.
func BuildICMPEcho(identifier, sequence uint16, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0] = ICMPTypeEchoRequest
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[4:6], identifier)
	binary.BigEndian.PutUint16(buf[6:8], sequence)
	copy(buf[8:], payload)

	cksum := Checksum(buf)
	binary.BigEndian.PutUint16(buf[2:4], cksum)
	return buf
}

// EchoPayload returns an all-`pattern`-byte payload of length n, as
// described by spec.md §4.1 ("every byte equal to payload_pattern").
func EchoPayload(pattern byte, n int) []byte {
	if n < 0 {
		n = 0
	}
	p := make([]byte, n)
	for i := range p {
		p[i] = pattern
	}
	return p
}

// DecodedICMP is the result of parsing an inbound ICMPv4 message.
type DecodedICMP struct {
	Kind        ICMPKind
	Code        uint8
	ChecksumOK  bool
	Key         CorrelationKey
	EchoID      uint16 // valid when Kind == KindEchoReply
	EchoSeq     uint16 // valid when Kind == KindEchoReply
}

// DecodeICMP parses a raw ICMPv4 message (as delivered by an "ip4:icmp"
// socket, i.e. without the outer IPv4 header) and, for Time Exceeded and
// Destination Unreachable messages, recovers the correlation key of the
// probe that provoked it by inspecting the embedded original datagram.
func DecodeICMP(data []byte) (DecodedICMP, error) {
	if len(data) < 8 {
		return DecodedICMP{}, ErrPacketTooSmall
	}

	d := DecodedICMP{
		Code:       data[1],
		ChecksumOK: ValidateChecksum(data),
	}

	switch data[0] {
	case ICMPTypeEchoReply:
		d.Kind = KindEchoReply
		d.EchoID = be16(data[4:6])
		d.EchoSeq = be16(data[6:8])
		d.Key = ICMPEchoKey(d.EchoID, d.EchoSeq)
		return d, nil

	case ICMPTypeTimeExceeded:
		d.Kind = KindTimeExceeded
	case ICMPTypeUnreachable:
		d.Kind = KindDestinationUnreachable
	default:
		return DecodedICMP{}, ErrUnknownICMPType
	}

	// Time Exceeded / Destination Unreachable: the embedded original
	// datagram starts after the 4-byte unused field following the ICMP
	// header.
	if len(data) < 12 {
		return DecodedICMP{}, ErrPacketTooSmall
	}
	embedded, err := parseEmbedded(data[8:])
	if err != nil {
		return DecodedICMP{}, err
	}

	key, err := keyFromEmbedded(embedded)
	if err != nil {
		return DecodedICMP{}, err
	}
	d.Key = key
	return d, nil
}

// keyFromEmbedded recovers the correlation key of the probe whose header
// is embedded in an ICMP error's payload.
func keyFromEmbedded(e embeddedDatagram) (CorrelationKey, error) {
	switch e.protocol {
	case ProtoNumICMP:
		if e.headerPort[0] != ICMPTypeEchoRequest {
			return CorrelationKey{}, ErrNotOurs
		}
		id := be16(e.headerPort[4:6])
		seq := be16(e.headerPort[6:8])
		return ICMPEchoKey(id, seq), nil

	case ProtoNumUDP:
		src := be16(e.headerPort[0:2])
		dst := be16(e.headerPort[2:4])
		return UDPPortsKey(src, dst), nil

	case ProtoNumTCP:
		src := be16(e.headerPort[0:2])
		dst := be16(e.headerPort[2:4])
		seq := beU32(e.headerPort[4:8])
		return TCPTupleKey(src, dst, seq), nil

	default:
		return CorrelationKey{}, ErrNotOurs
	}
}
