package channel

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"

	"github.com/dtrace/trippy/internal/wire"
)

// RawChannel is the production Channel backed by raw IPv4 sockets. It
// owns one "ip4:icmp" socket for receiving ICMP responses (and, when the
// tracer protocol is ICMP, for sending Echo Requests too) plus, for UDP
// and TCP tracing, a second raw socket used to send the crafted probe and
// -- for TCP -- to also receive the destination's SYN-ACK/RST.
type RawChannel struct {
	proto wire.Proto

	icmpConn *icmp.PacketConn
	sendConn net.PacketConn // nil when proto == ICMP: icmpConn serves both roles

	responses chan *Response
	done      chan struct{}
}

// NewRawChannel opens the sockets needed to trace with proto. Callers
// need the privilege to open raw sockets (see internal/privilege).
func NewRawChannel(proto wire.Proto) (*RawChannel, error) {
	icmpConn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("channel: open icmp socket: %w", err)
	}

	c := &RawChannel{
		proto:     proto,
		icmpConn:  icmpConn,
		responses: make(chan *Response, 64),
		done:      make(chan struct{}),
	}

	switch proto {
	case wire.ProtoUDP:
		c.sendConn, err = net.ListenPacket("ip4:udp", "0.0.0.0")
	case wire.ProtoTCP:
		c.sendConn, err = net.ListenPacket("ip4:tcp", "0.0.0.0")
	case wire.ProtoICMP:
		// icmpConn alone is enough.
	default:
		err = ErrUnsupportedProto
	}
	if err != nil {
		icmpConn.Close()
		return nil, fmt.Errorf("channel: open %s socket: %w", proto, err)
	}

	go c.readICMPLoop()
	if proto == wire.ProtoTCP {
		go c.readTCPLoop()
	}

	return c, nil
}

func (c *RawChannel) SendProbe(ctx context.Context, p OutboundProbe) error {
	select {
	case <-c.done:
		return ErrSocketClosed
	default:
	}

	dst := &net.IPAddr{IP: p.Dest}

	switch p.Proto {
	case wire.ProtoICMP:
		if err := c.icmpConn.IPv4PacketConn().SetTTL(p.TTL); err != nil {
			return fmt.Errorf("%w: set ttl: %v", ErrSendFailed, err)
		}
		if _, err := c.icmpConn.WriteTo(p.Payload, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}

	case wire.ProtoUDP, wire.ProtoTCP:
		if c.sendConn == nil {
			return ErrUnsupportedProto
		}
		if err := c.setTTL(p.TTL); err != nil {
			return fmt.Errorf("%w: set ttl: %v", ErrSendFailed, err)
		}
		if _, err := c.sendConn.WriteTo(p.Payload, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}

	default:
		return ErrUnsupportedProto
	}

	return nil
}

func (c *RawChannel) setTTL(ttl int) error {
	ipConn, ok := c.sendConn.(*net.IPConn)
	if !ok {
		return fmt.Errorf("unsupported connection type %T", c.sendConn)
	}
	rawConn, err := ipConn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		setErr = setIPv4TTL(fd, ttl)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}

func (c *RawChannel) RecvProbeResponse(timeout time.Duration) (*Response, error) {
	select {
	case r, ok := <-c.responses:
		if !ok {
			return nil, ErrSocketClosed
		}
		return r, nil
	case <-time.After(timeout):
		return nil, nil
	case <-c.done:
		return nil, ErrSocketClosed
	}
}

func (c *RawChannel) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}

	var err error
	if e := c.icmpConn.Close(); e != nil {
		err = e
	}
	if c.sendConn != nil {
		if e := c.sendConn.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// readICMPLoop continuously decodes inbound ICMP messages and forwards
// recognized ones. Malformed or uninteresting packets are dropped
// silently per spec.md §4.2.
func (c *RawChannel) readICMPLoop() {
	buf := make([]byte, 1500)
	for {
		n, peer, err := c.icmpConn.ReadFrom(buf)
		if err != nil {
			return // socket closed
		}
		recvAt := time.Now()

		d, err := wire.DecodeICMP(buf[:n])
		if err != nil {
			continue
		}

		resp := &Response{
			Kind:       d.Kind,
			Code:       d.Code,
			Host:       hostFromAddr(peer),
			RecvAt:     recvAt,
			Key:        d.Key,
			ChecksumOK: d.ChecksumOK,
		}
		c.publish(resp)
	}
}

// readTCPLoop decodes inbound TCP segments (SYN-ACK or RST) from the
// destination, only relevant when tracing with TCP SYN probes.
func (c *RawChannel) readTCPLoop() {
	buf := make([]byte, 1500)
	for {
		n, peer, err := c.sendConn.ReadFrom(buf)
		if err != nil {
			return
		}
		recvAt := time.Now()

		d, err := wire.DecodeTCP(buf[:n])
		if err != nil {
			continue
		}
		if !d.SYN && !d.RST {
			continue
		}
		seq, _ := d.OriginalSeq() // zero-value fallback when ACK absent

		resp := &Response{
			Host:    hostFromAddr(peer),
			RecvAt:  recvAt,
			Key:     wire.TCPTupleKey(d.DstPort, d.SrcPort, seq),
			Reached: true,
		}
		c.publish(resp)
	}
}

func (c *RawChannel) publish(r *Response) {
	select {
	case c.responses <- r:
	case <-c.done:
	default:
		// Responses channel saturated: drop rather than block the
		// reader loop, matching the "never busy-wait" guarantee on the
		// consuming side.
	}
}

func hostFromAddr(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

var _ Channel = (*RawChannel)(nil)
