// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package action holds the small action-list vocabulary shared between
// a Decision's Custom variant and the backend that compiles decisions
// into flow-mod action lists: OUTPUT and SET_FIELD. Giving these their
// own package lets internal/decision and internal/backend both depend
// on it without either depending on the other.
package action

import "grimm.is/reactived/internal/match"

// Kind names one wire action.
type Kind int

const (
	KindOutput Kind = iota
	KindSetField
)

// Output port sentinels, named the way OpenFlow 1.3 reserves them.
const (
	PortFlood      uint32 = 0xfffffffb
	PortController uint32 = 0xfffffffd
)

// Action is one entry of a compiled action list.
type Action struct {
	Kind   Kind
	Port   uint32      // KindOutput
	MaxLen uint16      // KindOutput to PortController: bytes to send
	Field  match.Field // KindSetField
}

// List accumulates actions in wire order: all modifications accumulated
// via a packet's Modify calls are emitted as SET_FIELD actions prepended
// to the output actions, then OUTPUTs.
type List struct {
	SetFields []Action
	Outputs   []Action
}

// SetField appends a SET_FIELD action for f.
func (l *List) SetField(f match.Field) {
	l.SetFields = append(l.SetFields, Action{Kind: KindSetField, Field: f})
}

// Output appends an OUTPUT action to port, requesting maxLen bytes when
// port is PortController (0 means "entire packet").
func (l *List) Output(port uint32, maxLen uint16) {
	l.Outputs = append(l.Outputs, Action{Kind: KindOutput, Port: port, MaxLen: maxLen})
}

// Flatten returns the action list in wire order: SET_FIELDs, then
// OUTPUTs.
func (l *List) Flatten() []Action {
	out := make([]Action, 0, len(l.SetFields)+len(l.Outputs))
	out = append(out, l.SetFields...)
	out = append(out, l.Outputs...)
	return out
}
