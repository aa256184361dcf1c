package http

import (
	"net/http"
	"time"

	"github.com/polarisid/polaris/pkg/httpx"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

func (r *Router) handleLivez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: r.buildVersion,
		Uptime:  time.Since(r.startTime).Round(time.Second).String(),
	})
}

func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Ping(req.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
