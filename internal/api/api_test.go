// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rconfig"
	"grimm.is/reactived/internal/runtime"
	"grimm.is/reactived/internal/transport"
)

func newTestRouter(rt *runtime.Runtime) *mux.Router {
	router := mux.NewRouter()
	NewHandlers(rt).RegisterRoutes(router)
	return router
}

func TestHandleStatusReportsEmptyRuntime(t *testing.T) {
	rt := runtime.New(rconfig.Default(), nil, nil)
	router := newTestRouter(rt)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["switches_connected"])
	assert.Equal(t, float64(0), body["live_flows"])
}

func TestHandleSwitchesListsConnectedSwitch(t *testing.T) {
	rt := runtime.New(rconfig.Default(), nil, nil)
	conn := transport.NewConnection(7, func(uint64, []byte) error { return nil })
	require.NoError(t, rt.HandleSwitchUp(7, conn))

	router := newTestRouter(rt)
	req := httptest.NewRequest(http.MethodGet, "/switches", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "7")
}

func TestHandleFlowsListsInstalledFlow(t *testing.T) {
	rt := runtime.New(rconfig.Default(), nil, nil)
	conn := transport.NewConnection(1, func(uint64, []byte) error { return nil })
	require.NoError(t, rt.HandleSwitchUp(1, conn))
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})

	pkt := fieldset.New()
	v, err := match.NewValue(match.IPProto, 6)
	require.NoError(t, err)
	require.NoError(t, pkt.Modify(match.FromValue(v)))
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, pkt))

	router := newTestRouter(rt)
	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Flows []struct {
			Cookie   uint64 `json:"cookie"`
			Decision string `json:"decision"`
		} `json:"flows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Flows, 1)
	assert.Equal(t, "unicast", body.Flows[0].Decision)
}

func TestHandleFlowByCookieNotFound(t *testing.T) {
	rt := runtime.New(rconfig.Default(), nil, nil)
	router := newTestRouter(rt)

	req := httptest.NewRequest(http.MethodGet, "/flows/0x1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFlowByCookieBadCookieIsBadRequest(t *testing.T) {
	rt := runtime.New(rconfig.Default(), nil, nil)
	router := newTestRouter(rt)

	req := httptest.NewRequest(http.MethodGet, "/flows/not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
