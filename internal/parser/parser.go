// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package parser implements a packet parser that walks a raw L2 frame,
// binding each recognized header field to a pointer into
// the backing buffer so that Load reads live bytes and Modify patches
// them in place, then satisfies internal/packet's Packet interface over
// those bindings. It recognizes Ethernet II, optional 802.1Q, ARP, IPv4,
// IPv6, TCP, UDP and ICMP, and is robust to short buffers: a layer is
// parsed only if its header fits within what remains, otherwise parsing
// stops cleanly and no bindings for that layer or deeper are added.
package parser

import (
	"encoding/binary"

	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/rerrors"
)

const (
	ethHeaderLen  = 14
	vlanTagLen    = 4
	arpHeaderLen  = 28
	ipv4MinLen    = 20
	ipv6HeaderLen = 40
	tcpMinLen     = 20
	udpLen        = 8
	icmpMinLen    = 4

	ethTypeVLAN = 0x8100
	ethTypeARP  = 0x0806
	ethTypeIPv4 = 0x0800
	ethTypeIPv6 = 0x86dd

	ipProtoICMP   = 1
	ipProtoTCP    = 6
	ipProtoUDP    = 17
	ipProtoICMPv6 = 58
)

type key struct {
	ns match.Namespace
	id uint8
}

func keyOf(t match.Type) key { return key{t.Namespace, t.ID} }

type binding struct {
	load   func() (bits.Bits, error)
	modify func(patch match.Field) error
}

// Parser is a parsing Packet: a raw frame buffer plus the bindings
// recovered from it.
type Parser struct {
	buf      []byte
	inPort   uint32
	bindings map[key]binding
}

// Parse walks buf (an L2 frame) binding recognized header fields, and
// records ingressPort as the packet's in_port.
func Parse(buf []byte, ingressPort uint32) *Parser {
	p := &Parser{buf: buf, inPort: ingressPort, bindings: make(map[key]binding)}
	p.bindInPort()
	p.parseEthernet()
	return p
}

func (p *Parser) bindByteRange(t match.Type, start, length int) {
	buf := p.buf
	p.bindings[keyOf(t)] = binding{
		load: func() (bits.Bits, error) {
			return bits.FromBytes(t.NBits, buf[start:start+length]), nil
		},
		modify: func(patch match.Field) error {
			cur := bits.FromBytes(t.NBits, buf[start:start+length])
			nv := cur.And(patch.Mask.Not()).Or(patch.Value)
			copy(buf[start:start+length], nv.Bytes())
			return nil
		},
	}
}

// bindEthType binds EthType to a fixed 2-byte offset, used for both the
// untagged case and the VLAN-tagged case (where it resolves to the inner
// type).
func (p *Parser) bindEthType(offset int) {
	p.bindByteRange(match.EthType, offset, 2)
}

func (p *Parser) bindVlanVid(offset int) {
	buf := p.buf
	t := match.VlanVid
	p.bindings[keyOf(t)] = binding{
		load: func() (bits.Bits, error) {
			tci := binary.BigEndian.Uint16(buf[offset : offset+2])
			b, _ := bits.FromUint64(t.NBits, uint64(tci&0x0fff))
			return b, nil
		},
		modify: func(patch match.Field) error {
			tci := binary.BigEndian.Uint16(buf[offset : offset+2])
			vid := tci &^ 0x0fff
			pv, err := patch.Value.Uint64()
			if err != nil {
				return err
			}
			pm, err := patch.Mask.Uint64()
			if err != nil {
				return err
			}
			cur := uint64(tci & 0x0fff)
			nv := (cur &^ pm) | (pv & pm)
			binary.BigEndian.PutUint16(buf[offset:offset+2], vid|uint16(nv&0x0fff))
			return nil
		},
	}
}

func (p *Parser) bindInPort() {
	t := match.InPort
	p.bindings[keyOf(t)] = binding{
		load: func() (bits.Bits, error) {
			return bits.FromUint64(t.NBits, uint64(p.inPort))
		},
		modify: func(patch match.Field) error {
			cur, _ := bits.FromUint64(t.NBits, uint64(p.inPort))
			nv := cur.And(patch.Mask.Not()).Or(patch.Value)
			v, err := nv.Uint64()
			if err != nil {
				return err
			}
			p.inPort = uint32(v)
			return nil
		},
	}
}

func (p *Parser) parseEthernet() {
	if len(p.buf) < ethHeaderLen {
		return
	}
	p.bindByteRange(match.EthDst, 0, 6)
	p.bindByteRange(match.EthSrc, 6, 6)

	ethType := binary.BigEndian.Uint16(p.buf[12:14])
	cursor := ethHeaderLen

	if ethType == ethTypeVLAN {
		if len(p.buf)-cursor < vlanTagLen {
			// VLAN tag announced but frame too short: stop, no EthType
			// binding at all (matches the "stop cleanly" rule).
			return
		}
		p.bindVlanVid(cursor)
		innerTypeOff := cursor + 2
		p.bindEthType(innerTypeOff)
		ethType = binary.BigEndian.Uint16(p.buf[innerTypeOff : innerTypeOff+2])
		cursor += vlanTagLen
	} else {
		p.bindEthType(12)
	}

	switch ethType {
	case ethTypeARP:
		p.parseARP(cursor)
	case ethTypeIPv4:
		p.parseIPv4(cursor)
	case ethTypeIPv6:
		p.parseIPv6(cursor)
	}
}

func (p *Parser) parseARP(off int) {
	if len(p.buf)-off < arpHeaderLen {
		return
	}
	p.bindByteRange(match.ArpOp, off+6, 2)
	p.bindByteRange(match.ArpSHA, off+8, 6)
	p.bindByteRange(match.ArpSPA, off+14, 4)
	p.bindByteRange(match.ArpTHA, off+18, 6)
	p.bindByteRange(match.ArpTPA, off+24, 4)
}

func (p *Parser) parseIPv4(off int) {
	if len(p.buf)-off < 1 {
		return
	}
	ihl := int(p.buf[off]&0x0f) * 4
	if ihl < ipv4MinLen || len(p.buf)-off < ihl {
		return
	}
	p.bindByteRange(match.IPProto, off+9, 1)
	p.bindByteRange(match.IPv4Src, off+12, 4)
	p.bindByteRange(match.IPv4Dst, off+16, 4)

	proto := p.buf[off+9]
	l4 := off + ihl
	p.parseL4(proto, l4)
}

func (p *Parser) parseIPv6(off int) {
	if len(p.buf)-off < ipv6HeaderLen {
		return
	}
	p.bindByteRange(match.IPProto, off+6, 1)
	p.bindByteRange(match.IPv6Src, off+8, 16)
	p.bindByteRange(match.IPv6Dst, off+24, 16)

	proto := p.buf[off+6]
	l4 := off + ipv6HeaderLen
	// NOTE: IPv6 extension headers are not walked; proto is taken as the
	// next-header value directly above the fixed header.
	p.parseL4(proto, l4)
}

func (p *Parser) parseL4(proto byte, off int) {
	switch proto {
	case ipProtoTCP:
		if len(p.buf)-off < tcpMinLen {
			return
		}
		p.bindByteRange(match.TCPSrc, off, 2)
		p.bindByteRange(match.TCPDst, off+2, 2)
	case ipProtoUDP:
		if len(p.buf)-off < udpLen {
			return
		}
		p.bindByteRange(match.UDPSrc, off, 2)
		p.bindByteRange(match.UDPDst, off+2, 2)
	case ipProtoICMP, ipProtoICMPv6:
		if len(p.buf)-off < icmpMinLen {
			return
		}
		p.bindByteRange(match.IcmpType, off, 1)
		p.bindByteRange(match.IcmpCode, off+1, 1)
	}
}

// Load reads the bits named by m from whichever binding, if any, covers
// its Type. An unbound field is reported as KindUnsupportedField tagged
// with errinfo_oxm_field.
func (p *Parser) Load(m match.Mask) (match.Field, error) {
	b, ok := p.bindings[keyOf(m.Type)]
	if !ok {
		return match.Field{}, rerrors.Attr(
			rerrors.Errorf(rerrors.KindUnsupportedField, "field %s not bound by parser", m.Type),
			"errinfo_oxm_field", m.Type.String())
	}
	raw, err := b.load()
	if err != nil {
		return match.Field{}, err
	}
	return match.NewField(m.Type, raw.And(m.Bits), m.Bits)
}

// Test implements the Packet.Test default.
func (p *Parser) Test(need match.Field) (bool, error) {
	loaded, err := p.Load(need.MaskOf())
	if err != nil {
		return false, err
	}
	return loaded.Match(need)
}

// Modify writes patch into the bound buffer region for its Type.
// Modifying a field the parser never bound raises out_of_range tagged
// with the field id.
func (p *Parser) Modify(patch match.Field) error {
	b, ok := p.bindings[keyOf(patch.Type)]
	if !ok {
		return rerrors.Attr(
			rerrors.Errorf(rerrors.KindOutOfRange, "field %s not bound by parser", patch.Type),
			"errinfo_oxm_field", patch.Type.String())
	}
	return b.modify(patch)
}

// Bound reports whether Type t has a live binding in this parse.
func (p *Parser) Bound(t match.Type) bool {
	_, ok := p.bindings[keyOf(t)]
	return ok
}

// InPort returns the ingress port recorded at Parse time.
func (p *Parser) InPort() uint32 { return p.inPort }

// SerializeTo copies min(len(raw buffer), cap) bytes of the (possibly
// modified) frame into dst, returning the number of bytes written.
func (p *Parser) SerializeTo(dst []byte, capBytes int) int {
	n := len(p.buf)
	if capBytes < n {
		n = capBytes
	}
	if len(dst) < n {
		n = len(dst)
	}
	copy(dst[:n], p.buf[:n])
	return n
}

// Raw returns the backing buffer. Callers must not retain it past the
// packet-in handler's return: bindings are pointers into this buffer and
// are only pinned for the handler's duration.
func (p *Parser) Raw() []byte { return p.buf }
