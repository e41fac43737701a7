package wire

import (
	"encoding/binary"
	"net"
)

// BuildUDP serialises a UDP header plus payload with source and
// destination ports set. When src/dst IP addresses are supplied the
// checksum is computed over the IPv4 pseudo-header; callers that don't
// have addresses handy (or don't care) may pass nil for either and the
// checksum is left as zero, which is valid for UDP over IPv4.
func BuildUDP(srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	length := 8 + len(payload)
	buf := make([]byte, length)

	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(length))
	// checksum at buf[6:8] left zero unless addresses are known
	copy(buf[8:], payload)

	if srcIP != nil && dstIP != nil {
		pseudo := ipv4PseudoHeader(srcIP, dstIP, ProtoNumUDP, length)
		cksum := Checksum(append(pseudo, buf...))
		if cksum == 0 {
			cksum = 0xffff
		}
		binary.BigEndian.PutUint16(buf[6:8], cksum)
	}

	return buf
}

func ipv4PseudoHeader(src, dst net.IP, protocol uint8, length int) []byte {
	ph := make([]byte, 12)
	copy(ph[0:4], src.To4())
	copy(ph[4:8], dst.To4())
	ph[8] = 0
	ph[9] = protocol
	binary.BigEndian.PutUint16(ph[10:12], uint16(length))
	return ph
}
