// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api exposes the running engine's state over HTTP for
// operator inspection: connected switches, live flows and tree shape.
// It is a read-only window onto internal/runtime, not a control plane —
// nothing here installs or evicts a flow.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/runtime"
)

// Handlers serves the inspection API for one Runtime.
type Handlers struct {
	rt *runtime.Runtime
}

// NewHandlers returns Handlers backed by rt.
func NewHandlers(rt *runtime.Runtime) *Handlers {
	return &Handlers{rt: rt}
}

// RegisterRoutes wires every endpoint onto router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/switches", h.handleSwitches).Methods(http.MethodGet)
	router.HandleFunc("/flows", h.handleFlows).Methods(http.MethodGet)
	router.HandleFunc("/flows/{cookie}", h.handleFlow).Methods(http.MethodGet)
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"switches_connected": len(h.rt.ConnectedSwitches()),
		"live_flows":         h.rt.LiveFlowCount(),
		"tree_leaves":        h.rt.TreeLeafCount(),
	})
}

func (h *Handlers) handleSwitches(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{"switches": h.rt.ConnectedSwitches()})
}

// flowView is the JSON projection of a decision.Flow; it exists because
// Flow guards its fields behind a mutex and has no exported struct tags
// of its own.
type flowView struct {
	Cookie   uint64 `json:"cookie"`
	State    string `json:"state"`
	Decision string `json:"decision"`
	SwitchID uint64 `json:"switch_id"`
	InPort   uint32 `json:"in_port"`
}

func viewOf(cookie uint64, f *decision.Flow) flowView {
	pictx := f.PacketInContext()
	return flowView{
		Cookie:   cookie,
		State:    f.State().String(),
		Decision: f.Decision().Kind().String(),
		SwitchID: pictx.SwitchID,
		InPort:   pictx.InPort,
	}
}

func (h *Handlers) handleFlows(w http.ResponseWriter, r *http.Request) {
	flows := h.rt.Flows()
	views := make([]flowView, 0, len(flows))
	for cookie, f := range flows {
		views = append(views, viewOf(cookie, f))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"flows": views})
}

func (h *Handlers) handleFlow(w http.ResponseWriter, r *http.Request) {
	cookie, err := parseCookie(mux.Vars(r)["cookie"])
	if err != nil {
		http.Error(w, "bad cookie", http.StatusBadRequest)
		return
	}
	flow, ok := h.rt.FlowByCookie(cookie)
	if !ok {
		http.Error(w, "no such flow", http.StatusNotFound)
		return
	}
	respondWithJSON(w, http.StatusOK, viewOf(cookie, flow))
}

func parseCookie(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
