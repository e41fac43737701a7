package wire

import "encoding/binary"

// IPv4 protocol numbers embedded in a Time Exceeded / Destination
// Unreachable payload, used to tell which probe shape provoked the
// response.
const (
	ProtoNumICMP = 1
	ProtoNumTCP  = 6
	ProtoNumUDP  = 17
)

// ipv4HeaderLen returns the header length in bytes encoded in the first
// byte of an IPv4 datagram (IHL, in 32-bit words).
func ipv4HeaderLen(b byte) int {
	return int(b&0x0f) * 4
}

// embeddedDatagram is the portion of an offending datagram that RFC 792
// guarantees an ICMP error carries: the original IP header followed by the
// first 8 bytes of whatever came after it.
type embeddedDatagram struct {
	protocol   uint8
	dstAddr    [4]byte
	headerPort [8]byte // first 8 bytes past the embedded IP header
}

// parseEmbedded extracts the original IP header plus first 8 bytes of
// payload from the body of a Time Exceeded/Destination Unreachable
// message. Per spec.md §4.1 this is "the ICMP payload contains the first
// 28 bytes of the offending datagram".
func parseEmbedded(data []byte) (embeddedDatagram, error) {
	if len(data) < 20 {
		return embeddedDatagram{}, ErrPacketTooSmall
	}
	ihl := ipv4HeaderLen(data[0])
	if ihl < 20 || len(data) < ihl+8 {
		return embeddedDatagram{}, ErrPacketTooSmall
	}

	var e embeddedDatagram
	e.protocol = data[9]
	copy(e.dstAddr[:], data[16:20])
	copy(e.headerPort[:], data[ihl:ihl+8])
	return e, nil
}

func be16(b []byte) uint16  { return binary.BigEndian.Uint16(b) }
func beU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
