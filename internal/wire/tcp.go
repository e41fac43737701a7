package wire

import (
	"encoding/binary"
	"net"
)

// tcpFlagSYN is the lone flag this package ever sets: probes never carry a
// payload or expect an established connection, only the SYN needed to
// provoke a SYN-ACK or RST from the destination.
const tcpFlagSYN = 0x02

// BuildTCPSYN serialises a bare TCP SYN segment (no payload, no options)
// with the given source/destination ports and sequence number, with its
// checksum computed over the IPv4 pseudo-header.
func BuildTCPSYN(srcIP, dstIP net.IP, srcPort, dstPort uint16, seq uint32) []byte {
	buf := make([]byte, 20)

	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], 0) // ack number, unused for SYN
	buf[12] = 0x50                           // data offset = 5 words, no options
	buf[13] = tcpFlagSYN
	binary.BigEndian.PutUint16(buf[14:16], 65535) // window
	binary.BigEndian.PutUint16(buf[18:20], 0)     // urgent pointer

	pseudo := ipv4PseudoHeader(srcIP, dstIP, ProtoNumTCP, len(buf))
	cksum := Checksum(append(pseudo, buf...))
	binary.BigEndian.PutUint16(buf[16:18], cksum)

	return buf
}

// DecodedTCP is the result of parsing an inbound TCP segment sent in
// response to a SYN probe (SYN-ACK or RST).
type DecodedTCP struct {
	SrcPort uint16
	DstPort uint16
	AckNum  uint32
	SYN     bool
	ACK     bool
	RST     bool
}

// DecodeTCP parses a raw TCP segment (no IP header).
func DecodeTCP(data []byte) (DecodedTCP, error) {
	if len(data) < 20 {
		return DecodedTCP{}, ErrPacketTooSmall
	}
	flags := data[13]
	return DecodedTCP{
		SrcPort: be16(data[0:2]),
		DstPort: be16(data[2:4]),
		AckNum:  beU32(data[8:12]),
		SYN:     flags&0x02 != 0,
		ACK:     flags&0x10 != 0,
		RST:     flags&0x04 != 0,
	}, nil
}

// OriginalSeq recovers the sequence number of the SYN probe that provoked
// this SYN-ACK/RST, derived from the acknowledgment number (ack = seq+1),
// per RFC 793. Returns seq=0, ok=false when the segment carries no ACK;
// no port-pair-only fallback exists, so a key built from that zero seq
// matches no probe.
func (d DecodedTCP) OriginalSeq() (seq uint32, ok bool) {
	if !d.ACK {
		return 0, false
	}
	return d.AckNum - 1, true
}
