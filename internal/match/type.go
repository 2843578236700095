// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package match implements the typed match-field algebra: a Type
// (namespace, id, maskable flag, width) plus a Value and/or Mask bit-string,
// combined into a Field under the invariant value & ~mask == 0. Every
// higher layer (field set, packet, tracer, trace tree, backend) works
// exclusively through this algebra so that the engine never reasons
// about raw bytes directly.
package match

import "fmt"

// Namespace partitions the id space a Type's id is drawn from.
type Namespace uint16

const (
	// NamespaceOpenFlowBasic holds the well-known OXM basic match fields.
	NamespaceOpenFlowBasic Namespace = 0x8000
	// NamespaceExperimenter is reserved for vendor/experimenter fields;
	// ids within it are not enumerated here.
	NamespaceExperimenter Namespace = 0xffff
)

// Type is the triple (namespace, id, maskable) plus a bit width. Equality
// between two Types (Equals) looks only at namespace and id: width and
// maskable are fixed properties of a given (namespace, id) pair, not
// independent axes of identity.
type Type struct {
	Namespace Namespace
	ID        uint8 // 7-bit id within the namespace
	Maskable  bool
	NBits     int
	name      string
}

// Equals reports whether two Types name the same field, ignoring width
// and maskable (which are derived from the (namespace, id) pair anyway).
func (t Type) Equals(o Type) bool {
	return t.Namespace == o.Namespace && t.ID == o.ID
}

func (t Type) String() string {
	if t.name != "" {
		return t.name
	}
	return fmt.Sprintf("type(ns=%#x,id=%d)", t.Namespace, t.ID)
}

// Nbits returns the field's width in bits.
func (t Type) Nbits() int { return t.NBits }

// newBasic constructs a well-known OpenFlow-Basic Type.
func newBasic(id uint8, nbits int, maskable bool, name string) Type {
	return Type{Namespace: NamespaceOpenFlowBasic, ID: id, Maskable: maskable, NBits: nbits, name: name}
}

// NewExperimenter constructs a Type in the Experimenter namespace, for
// vendor fields not enumerated among the well-known OpenFlow-Basic set.
func NewExperimenter(id uint8, nbits int, maskable bool, name string) Type {
	return Type{Namespace: NamespaceExperimenter, ID: id, Maskable: maskable, NBits: nbits, name: name}
}

// Well-known OpenFlow-Basic field types, id values arbitrary but stable
// within this package (they are never placed on the wire by this engine;
// the OpenFlow codec itself is a separate external collaborator).
var (
	InPort    = newBasic(0, 32, false, "in_port")
	EthSrc    = newBasic(1, 48, true, "eth_src")
	EthDst    = newBasic(2, 48, true, "eth_dst")
	EthType   = newBasic(3, 16, false, "eth_type")
	VlanVid   = newBasic(4, 12, true, "vlan_vid")
	IPProto   = newBasic(5, 8, false, "ip_proto")
	IPv4Src   = newBasic(6, 32, true, "ipv4_src")
	IPv4Dst   = newBasic(7, 32, true, "ipv4_dst")
	IPv6Src   = newBasic(8, 128, true, "ipv6_src")
	IPv6Dst   = newBasic(9, 128, true, "ipv6_dst")
	TCPSrc    = newBasic(10, 16, false, "tcp_src")
	TCPDst    = newBasic(11, 16, false, "tcp_dst")
	UDPSrc    = newBasic(12, 16, false, "udp_src")
	UDPDst    = newBasic(13, 16, false, "udp_dst")
	ArpOp     = newBasic(14, 16, false, "arp_op")
	ArpSPA    = newBasic(15, 32, true, "arp_spa")
	ArpTPA    = newBasic(16, 32, true, "arp_tpa")
	ArpSHA    = newBasic(17, 48, true, "arp_sha")
	ArpTHA    = newBasic(18, 48, true, "arp_tha")
	IcmpType  = newBasic(19, 8, false, "icmp_type")
	IcmpCode  = newBasic(20, 8, false, "icmp_code")
)

// AllBasic lists every well-known OpenFlow-Basic Type, mostly useful to
// tests and to the parser's field-binding table construction.
func AllBasic() []Type {
	return []Type{
		InPort, EthSrc, EthDst, EthType, VlanVid, IPProto,
		IPv4Src, IPv4Dst, IPv6Src, IPv6Dst,
		TCPSrc, TCPDst, UDPSrc, UDPDst,
		ArpOp, ArpSPA, ArpTPA, ArpSHA, ArpTHA,
		IcmpType, IcmpCode,
	}
}
