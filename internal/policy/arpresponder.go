// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/reactived/internal/backend"
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/packet"
)

// HostTable maps known IPv4 hosts to their MAC, the directory an ARP
// responder answers out of instead of flooding every request.
type HostTable struct {
	mu    sync.RWMutex
	hosts map[uint32]net.HardwareAddr
}

// NewHostTable returns an empty host directory.
func NewHostTable() *HostTable {
	return &HostTable{hosts: make(map[uint32]net.HardwareAddr)}
}

// Set records mac as the owner of ip.
func (h *HostTable) Set(ip net.IP, mac net.HardwareAddr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hosts[ipToUint32(ip)] = mac
}

func (h *HostTable) lookup(ip uint32) (net.HardwareAddr, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	mac, ok := h.hosts[ip]
	return mac, ok
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return binary.BigEndian.Uint32(v4)
}

// Sender is the slice of internal/runtime.Runtime an ARPResponder needs
// to emit its own packet-out, spelled out locally so this package does
// not import internal/runtime.
type Sender interface {
	SendPacketOut(switchID uint64, bufferID, inPort uint32, raw []byte, mods *fieldset.Set, d decision.Decision) error
}

// ARPResponder answers ARP requests for hosts it knows about directly,
// without ever installing a forwarding rule: every matching request
// is an Inspect decision whose handler emits one synthesized reply.
type ARPResponder struct {
	hosts  *HostTable
	sender Sender
}

// NewARPResponder returns a responder backed by hosts, emitting replies
// through sender.
func NewARPResponder(hosts *HostTable, sender Sender) *ARPResponder {
	return &ARPResponder{hosts: hosts, sender: sender}
}

var serializeOpts = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

// Handler returns the closure driving the responder: it tests for an
// ARP request addressed to a known host and, on a match, returns an
// Inspect decision whose handler builds and sends the reply. previous is
// unused: an ARP reply never defers to or builds on an earlier handler's
// decision.
func (r *ARPResponder) Handler() func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
	return func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		arpOpVal, err := match.NewValue(match.ArpOp, 1)
		if err != nil {
			return decision.Decision{}, err
		}
		isRequest, err := pkt.Test(match.FromValue(arpOpVal))
		if err != nil {
			return decision.Decision{}, err
		}
		if !isRequest {
			return decision.Undefined(), nil
		}

		tpaField, err := pkt.Load(match.ExactMask(match.ArpTPA))
		if err != nil {
			return decision.Decision{}, err
		}
		tpa := binary.BigEndian.Uint32(tpaField.ValueOf().Bits.Bytes())
		if _, ok := r.hosts.lookup(tpa); !ok {
			return decision.Undefined(), nil
		}
		return decision.Inspect(0, r.respond), nil
	}
}

func (r *ARPResponder) respond(pkt packet.Packet, flow *decision.Flow) (bool, error) {
	spaField, err := pkt.Load(match.ExactMask(match.ArpSPA))
	if err != nil {
		return false, err
	}
	shaField, err := pkt.Load(match.ExactMask(match.ArpSHA))
	if err != nil {
		return false, err
	}
	tpaField, err := pkt.Load(match.ExactMask(match.ArpTPA))
	if err != nil {
		return false, err
	}

	tpa := binary.BigEndian.Uint32(tpaField.ValueOf().Bits.Bytes())
	ownerMAC, ok := r.hosts.lookup(tpa)
	if !ok {
		return false, nil
	}

	querierMAC := net.HardwareAddr(shaField.ValueOf().Bits.Bytes())
	querierIP := net.IP(spaField.ValueOf().Bits.Bytes())
	targetIP := net.IP(tpaField.ValueOf().Bits.Bytes())

	eth := &layers.Ethernet{SrcMAC: ownerMAC, DstMAC: querierMAC, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   ownerMAC,
		SourceProtAddress: targetIP,
		DstHwAddress:      querierMAC,
		DstProtAddress:    querierIP,
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, eth, arp); err != nil {
		return false, err
	}

	pictx := flow.PacketInContext()
	if err := r.sender.SendPacketOut(pictx.SwitchID, backend.OFPNoBuffer, pictx.InPort, buf.Bytes(), fieldset.New(), decision.Unicast(pictx.InPort)); err != nil {
		return false, err
	}
	return true, nil
}
