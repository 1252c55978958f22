package main

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
)

// #region status
// statusResponse is the public view served at /status.
type statusResponse struct {
	State          string       `json:"state"`
	RedCode        bool         `json:"red_code"`
	LockdownReason string       `json:"lockdown_reason,omitempty"`
	LockedAt       *time.Time   `json:"locked_at,omitempty"`
	Records        int          `json:"records"`
	CycleCount     int          `json:"cycle_count"`
	LastAudit      *auditStatus `json:"last_audit,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type auditStatus struct {
	Status       string   `json:"status"`
	Drift        *float64 `json:"drift,omitempty"`
	Samples      int      `json:"samples"`
	CorrectionID string   `json:"correction_id,omitempty"`
}

func newStatusResponse(st engine.Status, now time.Time) statusResponse {
	resp := statusResponse{
		State:      st.State.String(),
		RedCode:    st.State == lockdown.Locked,
		Records:    st.Records,
		CycleCount: st.CycleCount,
		UpdatedAt:  now,
	}
	if resp.RedCode {
		at := st.LockedAt
		resp.LockdownReason = st.LockdownReason
		resp.LockedAt = &at
	}
	if rep := st.LastAudit; rep != nil {
		as := &auditStatus{
			Status:       string(rep.Status),
			Samples:      rep.Samples,
			CorrectionID: rep.CorrectionID,
		}
		if rep.Status != audit.StatusInsufficientData {
			drift := rep.Drift
			as.Drift = &drift
		}
		resp.LastAudit = as
	}
	return resp
}

// statusHandler serves the engine status as JSON to any origin.
func statusHandler(e *engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		switch r.Method {
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Methods", "GET")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet, http.MethodHead:
		default:
			w.Header().Set("Allow", "GET, HEAD, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(newStatusResponse(e.Status(), time.Now().UTC())); err != nil {
			logger.Warn("write status", zap.Error(err))
		}
	}
}

// #endregion status
