package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
)

func TestStatusRunning(t *testing.T) {
	a, err := newApp(appOptions{LogLevel: "error"}, referenceSeeds(), nil)
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.handler(a.reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "running", got.State)
	require.False(t, got.RedCode)
	require.Nil(t, got.LockedAt)
	require.Equal(t, 3, got.Records)
	require.Nil(t, got.LastAudit)
}

func TestStatusAfterLockdown(t *testing.T) {
	a, err := newApp(appOptions{LogLevel: "error"}, referenceSeeds(), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	_, err = a.engine.Audit(ctx)
	require.NoError(t, err)
	require.NoError(t, runDemo(ctx, a.engine, io.Discard))

	srv := httptest.NewServer(a.handler(a.reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "locked", got.State)
	require.True(t, got.RedCode)
	require.Contains(t, got.LockdownReason, "consensus failed")
	require.NotNil(t, got.LockedAt)
	require.Equal(t, 4, got.Records)
	require.Equal(t, 2, got.CycleCount)
	require.NotNil(t, got.LastAudit)
	require.Equal(t, string(audit.StatusInsufficientData), got.LastAudit.Status)
	require.Nil(t, got.LastAudit.Drift)
	require.Equal(t, 3, got.LastAudit.Samples)

	// metrics share the mux
	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(mresp.Body)
	mresp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "raist_engine_locked 1")
}

func TestStatusMethods(t *testing.T) {
	a, err := newApp(appOptions{LogLevel: "error"}, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	h := a.handler(a.reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/status", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewStatusResponseDrift(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	resp := newStatusResponse(engine.Status{
		State:          lockdown.Locked,
		LockdownReason: "consensus failed",
		LockedAt:       at,
		Records:        6,
		LastAudit:      &audit.Report{Status: audit.StatusCorrected, Drift: 0.9199, Samples: 5, CorrectionID: "CAUSAL-V-3"},
	}, at)

	require.True(t, resp.RedCode)
	require.Equal(t, at, *resp.LockedAt)
	require.NotNil(t, resp.LastAudit.Drift)
	require.InDelta(t, 0.9199, *resp.LastAudit.Drift, 1e-12)
	require.Equal(t, "CAUSAL-V-3", resp.LastAudit.CorrectionID)
}
