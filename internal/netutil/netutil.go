// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netutil provides small address helpers shared by the match
// algebra and the packet parser: MAC and IP literals show up constantly
// in match-field construction (eth_src, eth_dst, arp sha/tha/spa/tpa,
// ipv4_src/dst, ipv6_src/dst) and in human-readable dumps of compiled
// trace-tree leaves.
package netutil

import (
	"fmt"
	"net"
)

// ParseMAC parses a colon- or dash-separated MAC literal into its raw
// 6-byte form.
func ParseMAC(macStr string) ([]byte, error) {
	hw, err := net.ParseMAC(macStr)
	if err != nil {
		return nil, err
	}
	return hw, nil
}

// FormatMAC renders a 6-byte MAC as a colon-separated literal.
func FormatMAC(mac []byte) string {
	if len(mac) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// ParseIPv4 parses a dotted-quad literal into its 4-byte big-endian form.
func ParseIPv4(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("netutil: invalid IPv4 literal %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("netutil: %q is not an IPv4 address", s)
	}
	return []byte(v4), nil
}

// ParseIPv6 parses an IPv6 literal into its 16-byte big-endian form.
func ParseIPv6(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("netutil: invalid IPv6 literal %q", s)
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, fmt.Errorf("netutil: %q is not an IPv6 address", s)
	}
	return []byte(v6), nil
}
