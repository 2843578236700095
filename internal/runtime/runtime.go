// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package runtime wires packet-in, flow-removed and switch-up events
// from a transport into the trace tree and a per-switch backend,
// running a named pipeline of handlers and driving each Flow through
// its Egg/Active/Evicted/Idle/Expired lifecycle.
package runtime

import (
	"fmt"
	"log"
	"sync"

	"grimm.is/reactived/internal/backend"
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/metrics"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rconfig"
	"grimm.is/reactived/internal/rerrors"
	"grimm.is/reactived/internal/tracetree"
	"grimm.is/reactived/internal/transport"
)

// HandlerFunc is one stage of the reactive pipeline: given the current
// packet (traced during augmentation, untraced during a plain re-run),
// the Flow it will ultimately be attached to, and the Decision every
// earlier handler in this run has folded together so far, it returns its
// own partial Decision. Decisions from every handler are folded together
// with Decision.Combine in registration order.
type HandlerFunc func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error)

// Handler names a HandlerFunc for logging and error attribution.
type Handler struct {
	Name string
	Fn   HandlerFunc
}

// Runtime is the engine's single point of contact with the outside
// world: one Runtime owns one trace tree (one reactive domain) and the
// live backends and flows of every switch participating in it.
type Runtime struct {
	cfg     *rconfig.Config
	metrics *metrics.Metrics
	logger  *log.Logger

	treeMu sync.RWMutex
	tree   *tracetree.Tree

	handlersMu sync.RWMutex
	handlers   []Handler

	connsMu  sync.RWMutex
	conns    map[uint64]*transport.Connection
	backends map[uint64]*backend.Backend

	flowsMu sync.RWMutex
	flows   map[uint64]*decision.Flow // keyed by cookie
}

// New returns a Runtime configured by cfg, reporting to m (nil disables
// metrics) and logging via logger (nil disables logging).
func New(cfg *rconfig.Config, m *metrics.Metrics, logger *log.Logger) *Runtime {
	rt := &Runtime{
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		conns:    make(map[uint64]*transport.Connection),
		backends: make(map[uint64]*backend.Backend),
		flows:    make(map[uint64]*decision.Flow),
	}
	rt.tree = tracetree.New(cfg.PriorityLow, cfg.PriorityHigh, rt.backendFor)
	return rt
}

// Use appends a named handler to the pipeline. Handlers run in the order
// they were registered (spec's FIFO handler pipeline), and registration
// is expected to happen once at startup, before any switch connects.
func (rt *Runtime) Use(name string, fn HandlerFunc) {
	rt.handlersMu.Lock()
	defer rt.handlersMu.Unlock()
	rt.handlers = append(rt.handlers, Handler{Name: name, Fn: fn})
}

func (rt *Runtime) backendFor(switchID uint64) *backend.Backend {
	rt.connsMu.RLock()
	defer rt.connsMu.RUnlock()
	return rt.backends[switchID]
}

func (rt *Runtime) logf(format string, args ...any) {
	if rt.logger != nil {
		rt.logger.Printf(format, args...)
	}
}

// runPipeline runs every registered handler over pkt, folding their
// decisions left to right and passing each handler the Decision folded
// so far as its previous_decision argument. An error from any handler
// aborts the rest of the pipeline. No handler producing anything but
// Undefined is itself not an error here — the caller decides what an
// Undefined outcome means (unhandled_packet on table-miss, a silent drop
// on replay). A decision whose Return flag is set short-circuits the
// remaining handlers, per Decision composition.
func (rt *Runtime) runPipeline(pkt packet.Packet, flow *decision.Flow) (decision.Decision, error) {
	rt.handlersMu.RLock()
	handlers := make([]Handler, len(rt.handlers))
	copy(handlers, rt.handlers)
	rt.handlersMu.RUnlock()

	d := decision.Undefined()
	for _, h := range handlers {
		next, err := h.Fn(pkt, flow, d)
		if err != nil {
			return decision.Decision{}, rerrors.Wrapf(err, rerrors.KindInternal, "handler %q", h.Name)
		}
		combined, err := d.Combine(next)
		if err != nil {
			return decision.Decision{}, rerrors.Attr(err, "handler", h.Name)
		}
		d = combined
		if d.Return() {
			break
		}
	}
	return d, nil
}

func switchLabel(switchID uint64) string { return fmt.Sprintf("%d", switchID) }

// currentTree returns the tree in effect right now. Reassigning rt.tree
// (InvalidateTree) is rare compared to reading it (every packet-in), so
// this is an RWMutex rather than an atomic.Pointer despite the simple
// swap — the rest of the package already reaches for sync primitives
// over atomics for anything beyond a single counter.
func (rt *Runtime) currentTree() *tracetree.Tree {
	rt.treeMu.RLock()
	defer rt.treeMu.RUnlock()
	return rt.tree
}

// TreeLeafCount reports how many Flow leaves the current tree holds.
func (rt *Runtime) TreeLeafCount() int {
	return rt.currentTree().LeafCount()
}
