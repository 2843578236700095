// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package trace

import (
	"strings"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/match"
)

// LoggingTracer wraps another Tracer, recording every Load/Test/VLoad/
// Finish call it forwards as a one-line trace. It is meant for tests and
// debug builds that want to see exactly what a policy asked of a
// packet, not for the packet-in hot path.
type LoggingTracer struct {
	wrapped Tracer
	log     strings.Builder
}

// NewLoggingTracer wraps wrapped, forwarding every call to it after
// recording a line describing the call.
func NewLoggingTracer(wrapped Tracer) *LoggingTracer {
	return &LoggingTracer{wrapped: wrapped}
}

func (lt *LoggingTracer) Load(unexplored match.Field) error {
	lt.log.WriteString("(L ")
	lt.log.WriteString(unexplored.String())
	lt.log.WriteString(") ")
	return lt.wrapped.Load(unexplored)
}

func (lt *LoggingTracer) Test(pred match.Field, ret bool) error {
	lt.log.WriteString("(T ")
	lt.log.WriteString(pred.String())
	if ret {
		lt.log.WriteString(" -> true) ")
	} else {
		lt.log.WriteString(" -> false) ")
	}
	return lt.wrapped.Test(pred, ret)
}

func (lt *LoggingTracer) VLoad(by match.Field, what match.Field) error {
	lt.log.WriteString("(V ")
	lt.log.WriteString(by.String())
	lt.log.WriteString(" -> ")
	lt.log.WriteString(what.String())
	lt.log.WriteString(") ")
	return lt.wrapped.VLoad(by, what)
}

func (lt *LoggingTracer) Finish(flow *decision.Flow) (Installer, error) {
	lt.log.WriteString("F")
	return lt.wrapped.Finish(flow)
}

// Log returns everything recorded so far, in call order.
func (lt *LoggingTracer) Log() string {
	return lt.log.String()
}
