// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pcapfixture synthesizes raw Ethernet frames with github.com/gopacket/gopacket
// for use as parser test fixtures, so tests exercise the same byte layouts
// a real capture would produce instead of hand-assembled byte slices.
package pcapfixture

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

var serializeOpts = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

// MACs used by every fixture, named for their role rather than any
// particular vendor OUI.
var (
	SrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	DstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func serialize(layerList ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, layerList...); err != nil {
		panic(err) // fixtures are fixed inputs; a failure here is a bug in this file
	}
	return buf.Bytes()
}

// bareEthernet returns a tagged or untagged Ethernet frame carrying
// payload under ethType, with an optional 802.1Q tag when vlanID >= 0.
func bareEthernet(ethType layers.EthernetType, vlanID int, payload gopacket.SerializableLayer) []byte {
	eth := &layers.Ethernet{SrcMAC: SrcMAC, DstMAC: DstMAC, EthernetType: layers.EthernetTypeDot1Q}
	if vlanID < 0 {
		eth.EthernetType = ethType
		return serialize(eth, payload)
	}
	dot1q := &layers.Dot1Q{VLANIdentifier: uint16(vlanID), Type: ethType}
	return serialize(eth, dot1q, payload)
}

// ARPRequest builds an Ethernet+ARP "who has tpa" request frame, tagged
// with vlanID when vlanID >= 0.
func ARPRequest(vlanID int, spa, tpa net.IP, sha net.HardwareAddr) []byte {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   sha,
		SourceProtAddress: spa.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    tpa.To4(),
	}
	return bareEthernet(layers.EthernetTypeARP, vlanID, arp)
}

// ARPReply builds an Ethernet+ARP reply frame announcing sha owns spa.
func ARPReply(vlanID int, spa, tpa net.IP, sha, tha net.HardwareAddr) []byte {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   sha,
		SourceProtAddress: spa.To4(),
		DstHwAddress:      tha,
		DstProtAddress:    tpa.To4(),
	}
	return bareEthernet(layers.EthernetTypeARP, vlanID, arp)
}

// TCPv4 builds an Ethernet+IPv4+TCP frame with the given ports and a
// small payload, tagged with vlanID when vlanID >= 0.
func TCPv4(vlanID int, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Seq: 1, Window: 65535, SYN: true}
	_ = tcp.SetNetworkLayerForChecksum(ip4)
	return bareEthernet(layers.EthernetTypeIPv4, vlanID, chain(ip4, tcp, gopacket.Payload(payload)))
}

// UDPv4 builds an Ethernet+IPv4+UDP frame with the given ports and
// payload, tagged with vlanID when vlanID >= 0.
func UDPv4(vlanID int, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip4)
	return bareEthernet(layers.EthernetTypeIPv4, vlanID, chain(ip4, udp, gopacket.Payload(payload)))
}

// ICMPv4Echo builds an Ethernet+IPv4+ICMPv4 echo-request frame.
func ICMPv4Echo(vlanID int, srcIP, dstIP net.IP) []byte {
	ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return bareEthernet(layers.EthernetTypeIPv4, vlanID, chain(ip4, icmp))
}

// TCPv6 builds an Ethernet+IPv6+TCP frame.
func TCPv6(vlanID int, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	ip6 := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolTCP, SrcIP: srcIP.To16(), DstIP: dstIP.To16()}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Seq: 1, Window: 65535, SYN: true}
	_ = tcp.SetNetworkLayerForChecksum(ip6)
	return bareEthernet(layers.EthernetTypeIPv6, vlanID, chain(ip6, tcp, gopacket.Payload(payload)))
}

// chain composes multiple serializable layers into a single
// SerializableLayer by pre-serializing them in order; it exists because
// bareEthernet/serialize take a fixed two-layer shape (eth[/dot1q] plus
// one payload).
func chain(layerList ...gopacket.SerializableLayer) gopacket.Payload {
	return gopacket.Payload(serialize(layerList...))
}

// Truncate returns frame cut to n bytes, or the whole frame if it is
// already shorter — used to exercise the parser's short-buffer handling.
func Truncate(frame []byte, n int) []byte {
	if n >= len(frame) {
		return frame
	}
	return frame[:n]
}
