// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rerrors provides the structured error type used across the
// reactive forwarding engine: a Kind plus a message, an optional
// underlying cause, and free-form attributes (field id, switch id,
// handler name, trace log) that accumulate as an error is re-wrapped
// while it propagates up through the engine.
package rerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by the layer and reason it originated from.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindMalformed        // short packet, bad OXM length, unknown namespace
	KindUnsupportedField // policy requested a field the parser never bound
	KindBadCast          // field<type> downcast against the wrong runtime type
	KindBadMask          // fuzzy mask constructed on a non-maskable type
	KindBadBitLength     // value/mask width does not match type.nbits()
	KindBadOperands      // binary op between incompatible field types
	KindOutOfRange        // modify() against an unbound parser field
	KindTraceInconsistent // tracer saw a node type contradicting the step
	KindPriorityExceeded  // midpoint fell outside the inherited priority interval
	KindDecisionConflict  // two incompatible non-Undefined decisions combined
	KindUnhandledPacket   // pipeline returned Undefined
	KindTransport         // send to a switch failed
	KindNoSuchSwitch      // operation named a switch id with no live connection
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindMalformed:
		return "malformed"
	case KindUnsupportedField:
		return "unsupported_field"
	case KindBadCast:
		return "bad_cast"
	case KindBadMask:
		return "bad_mask"
	case KindBadBitLength:
		return "bad_bit_length"
	case KindBadOperands:
		return "bad_operands"
	case KindOutOfRange:
		return "out_of_range"
	case KindTraceInconsistent:
		return "inconsistent_trace"
	case KindPriorityExceeded:
		return "priority_exceeded"
	case KindDecisionConflict:
		return "decision_conflict"
	case KindUnhandledPacket:
		return "unhandled_packet"
	case KindTransport:
		return "transport"
	case KindNoSuchSwitch:
		return "no_such_switch"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a chain of attributes and
// an optional underlying cause.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the given Kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the given Kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a new Error of the given Kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps err as a new Error of the given Kind with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to err, wrapping it as KindInternal first if
// it is not already an *Error.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if err is not one of ours.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects all attributes along err's chain, innermost keys
// losing to outermost on collision.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	cur := err
	for cur != nil {
		var e *Error
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		cur = e.Underlying
	}
	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }
