package wire

import "fmt"

// Proto identifies which of the three probe shapes a CorrelationKey
// belongs to.
type Proto uint8

const (
	ProtoICMP Proto = iota
	ProtoUDP
	ProtoTCP
)

func (p Proto) String() string {
	switch p {
	case ProtoICMP:
		return "icmp"
	case ProtoUDP:
		return "udp"
	case ProtoTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// CorrelationKey is the tagged variant the Prober uses to match an inbound
// ICMP message back to the probe that provoked it. Keys are comparable so
// they can be used directly as map keys.
type CorrelationKey struct {
	Proto Proto

	// ICMP Echo: Identifier/Sequence.
	Identifier uint16
	Sequence   uint16

	// UDP/TCP: Src/Dst ports. TCP additionally keys on Seq.
	Src uint16
	Dst uint16
	Seq uint32
}

// ICMPEchoKey builds the correlation key for an ICMP Echo probe.
func ICMPEchoKey(identifier, sequence uint16) CorrelationKey {
	return CorrelationKey{Proto: ProtoICMP, Identifier: identifier, Sequence: sequence}
}

// UDPPortsKey builds the correlation key for a UDP probe.
func UDPPortsKey(src, dst uint16) CorrelationKey {
	return CorrelationKey{Proto: ProtoUDP, Src: src, Dst: dst}
}

// TCPTupleKey builds the correlation key for a TCP SYN probe.
func TCPTupleKey(src, dst uint16, seq uint32) CorrelationKey {
	return CorrelationKey{Proto: ProtoTCP, Src: src, Dst: dst, Seq: seq}
}

func (k CorrelationKey) String() string {
	switch k.Proto {
	case ProtoICMP:
		return fmt.Sprintf("icmp(id=%d,seq=%d)", k.Identifier, k.Sequence)
	case ProtoUDP:
		return fmt.Sprintf("udp(src=%d,dst=%d)", k.Src, k.Dst)
	case ProtoTCP:
		return fmt.Sprintf("tcp(src=%d,dst=%d,seq=%d)", k.Src, k.Dst, k.Seq)
	default:
		return "unknown"
	}
}
