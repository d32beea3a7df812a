package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/appvine/apptrack/internal/apperr"
	"github.com/appvine/apptrack/internal/application"
	"github.com/appvine/apptrack/internal/telemetry"
)

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.List(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"data":    apps,
	})
}

func (s *Server) createApplication(w http.ResponseWriter, r *http.Request) {
	var payload application.CreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	fields, err := application.ValidateCreate(payload)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	app, err := s.store.Create(r.Context(), fields)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	telemetry.ObserveApplicationCreated("manual")
	writeJSON(s.logger, w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    app,
	})
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "id must be numeric", nil)
		return
	}
	app, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Application deleted successfully",
		"data":    app,
	})
}

type scrapeRequest struct {
	URL         string `json:"url"`
	MaxRequests int    `json:"maxRequests"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	result, err := s.scraper.Scrape(r.Context(), req.URL, req.MaxRequests)
	if err != nil {
		telemetry.ObserveScrape(apperr.KindOf(err).String())
		s.writeAppError(w, err)
		return
	}
	telemetry.ObserveScrape("success")
	telemetry.ObserveApplicationCreated("scraper")
	writeJSON(s.logger, w, http.StatusCreated, map[string]any{
		"success":            true,
		"scrapedData":        result.Pages,
		"extractedData":      result.Extracted,
		"createdApplication": result.Application,
	})
}

// writeAppError logs err and converts its kind to an HTTP status.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	s.logger.Warn("request failed",
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
	writeError(s.logger, w, statusFor(kind), apperr.MessageOf(err), apperr.DetailsOf(err))
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string, details []string) {
	body := map[string]any{
		"success": false,
		"error":   msg,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	writeJSON(logger, w, status, body)
}
