package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prompt-general/healthscore/internal/aggregator"
	"github.com/prompt-general/healthscore/internal/customersuccess"
	"github.com/prompt-general/healthscore/internal/window"
)

// retryAfterSeconds is advertised with SOURCE_UNAVAILABLE.
const retryAfterSeconds = "30"

func (g *Gateway) handleHealthScores(w http.ResponseWriter, r *http.Request) {
	win := g.parseWindow(r)
	data, err := g.views.HealthScoresJSON(r.Context(), win)
	if err != nil {
		g.writeViewError(w, r, customersuccess.ViewHealthScores, err)
		return
	}
	g.writeSuccessResponse(w, json.RawMessage(data))
}

func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	win := g.parseWindow(r)
	data, err := g.views.DashboardJSON(r.Context(), win)
	if err != nil {
		g.writeViewError(w, r, customersuccess.ViewDashboard, err)
		return
	}
	g.writeSuccessResponse(w, json.RawMessage(data))
}

func (g *Gateway) handleClearCache(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	res, err := g.views.ClearCache(r.Context(), scope)
	switch {
	case errors.Is(err, customersuccess.ErrUnknownView):
		g.writeErrorResponse(w, http.StatusBadRequest, "INVALID_SCOPE", "Unknown cache scope", err.Error())
	case err != nil:
		g.logger.Error("cache clear failed", slog.String("scope", scope), slog.String("err", err.Error()))
		g.writeErrorResponse(w, http.StatusBadGateway, "CACHE_UNAVAILABLE", "Failed to clear cache", err.Error())
	default:
		g.writeSuccessResponse(w, res)
	}
}

// parseWindow reads data_inicio/data_fim, with start/end as aliases.
// Unparseable bounds are dropped.
func (g *Gateway) parseWindow(r *http.Request) window.Window {
	q := r.URL.Query()
	start := firstOf(q.Get("data_inicio"), q.Get("start"))
	end := firstOf(q.Get("data_fim"), q.Get("end"))

	win := window.Parse(start, end)
	if start != "" && win.Start == nil {
		g.logger.Debug("ignoring invalid start date", slog.String("value", start))
	}
	if end != "" && win.End == nil {
		g.logger.Debug("ignoring invalid end date", slog.String("value", end))
	}
	return win
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (g *Gateway) writeViewError(w http.ResponseWriter, r *http.Request, view string, err error) {
	g.logger.Error("view failed",
		slog.String("view", view),
		slog.String("rid", RequestID(r.Context())),
		slog.String("err", err.Error()))

	if errors.Is(err, aggregator.ErrSourceUnavailable) {
		w.Header().Set("Retry-After", retryAfterSeconds)
		g.writeErrorResponse(w, http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "A data source is unavailable, retry later", err.Error())
		return
	}
	g.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute "+view, err.Error())
}
