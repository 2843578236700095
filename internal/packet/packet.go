// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packet defines the abstract Packet contract: Load, Test,
// Modify over the match-field algebra. Two concrete variants exist
// in this repository: an in-memory field-set packet (fieldset.Set, used
// for compiled rules and as the tracer's cache) and a parsing packet
// layered from a raw byte buffer (internal/parser.Parser). Both satisfy
// this interface structurally; neither package imports this one, which
// keeps internal/fieldset and internal/parser free of a dependency on
// internal/packet and each other.
package packet

import "grimm.is/reactived/internal/match"

// Packet is the abstract contract every packet representation in the
// engine implements.
type Packet interface {
	// Load reads the bits named by m and returns them as a Field whose
	// mask is exactly m.
	Load(m match.Mask) (match.Field, error)
	// Test reports whether the packet's bits, restricted to need's mask,
	// equal need's value. The default implementation (DefaultTest) is
	// Load(need.MaskOf()) & need; concrete packets may override to avoid
	// unnecessary loads.
	Test(need match.Field) (bool, error)
	// Modify writes patch into the packet, rewriting any previously
	// stored bits named by patch's mask.
	Modify(patch match.Field) error
}

// DefaultTest implements the Packet.Test default: load the field's mask,
// then compare under the field's own mask.
func DefaultTest(p Packet, need match.Field) (bool, error) {
	loaded, err := p.Load(need.MaskOf())
	if err != nil {
		return false, err
	}
	return loaded.Match(need)
}
