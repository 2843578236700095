// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pcapfixture

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestARPReplyParsesBackToSourceAndTarget(t *testing.T) {
	frame := ARPReply(-1, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), SrcMAC, DstMAC)

	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	require.NotNil(t, arpLayer)
	arp := arpLayer.(*layers.ARP)
	assert.Equal(t, layers.ARPReply, layers.ARPOperation(arp.Operation))
	assert.Equal(t, net.IP(arp.SourceProtAddress), net.IPv4(10, 0, 0, 1).To4())
	assert.Equal(t, net.HardwareAddr(arp.DstHwAddress), DstMAC)
}

func TestTruncateShortensFrame(t *testing.T) {
	frame := UDPv4(-1, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 53, 5353, []byte("hello"))
	short := Truncate(frame, 8)
	assert.Len(t, short, 8)
	assert.Equal(t, frame[:8], short)
}

func TestTruncateBeyondLengthReturnsWholeFrame(t *testing.T) {
	frame := UDPv4(-1, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 53, 5353, []byte("hello"))
	assert.Equal(t, frame, Truncate(frame, len(frame)+100))
}

func TestICMPv4EchoCarriesRequestTypeCode(t *testing.T) {
	frame := ICMPv4Echo(-1, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2))
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	icmpLayer := pkt.Layer(layers.LayerTypeICMPv4)
	require.NotNil(t, icmpLayer)
	icmp := icmpLayer.(*layers.ICMPv4)
	assert.Equal(t, layers.ICMPv4TypeEchoRequest, icmp.TypeCode.Type())
}
