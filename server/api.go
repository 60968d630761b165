package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"car-price-app/models"
	"car-price-app/services"
)

type fieldOptions struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

type optionsResponse struct {
	Numeric     map[string]models.NumericBound `json:"numeric"`
	Categorical []fieldOptions                 `json:"categorical"`
	Currency    string                         `json:"currency"`
}

type estimateResponse struct {
	*models.Estimate
	FormattedPrice string `json:"formatted_price"`
}

type batchRequest struct {
	Vehicles []models.VehicleInput `json:"vehicles"`
}

type batchResponse struct {
	Estimates []estimateResponse `json:"estimates"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	resp := optionsResponse{
		Numeric:  models.NumericBounds,
		Currency: s.opts.Currency,
	}
	for _, f := range models.CategoricalFields {
		resp.Categorical = append(resp.Categorical, fieldOptions{Name: f, Options: nonNil(s.table.Labels(f))})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	listings := s.estimator.Listings()
	if listings == nil {
		listings = []*models.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in models.VehicleInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := checkBounds(in); err != nil {
		s.writeBoundsError(w, err)
		return
	}

	release, err := s.admit(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "busy", "")
		return
	}
	est, err := s.estimator.Estimate(r.Context(), in)
	release()
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}

	s.record(r.Context(), est)
	writeJSON(w, http.StatusOK, s.present(est))
}

func (s *Server) handleEstimateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Vehicles) == 0 {
		writeError(w, http.StatusBadRequest, "vehicles must not be empty", "invalid_request", "vehicles")
		return
	}
	if len(req.Vehicles) > maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d vehicles per batch", maxBatch), "invalid_request", "vehicles")
		return
	}
	for i, in := range req.Vehicles {
		if err := checkBounds(in); err != nil {
			var be *boundsError
			if errors.As(err, &be) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("vehicles[%d]: %v", i, err), "out_of_range",
					fmt.Sprintf("vehicles[%d].%s", i, be.Field))
				return
			}
		}
	}

	release, err := s.admit(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "busy", "")
		return
	}
	ests, err := s.estimator.EstimateBatch(r.Context(), req.Vehicles)
	release()
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}

	s.record(r.Context(), ests...)
	resp := batchResponse{Estimates: make([]estimateResponse, len(ests))}
	for i, e := range ests {
		resp.Estimates[i] = s.present(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "too_large", "")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "invalid_request", "")
		return false
	}
	return true
}

func (s *Server) writeBoundsError(w http.ResponseWriter, err error) {
	var be *boundsError
	if errors.As(err, &be) {
		writeError(w, http.StatusBadRequest, err.Error(), "out_of_range", be.Field)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), "invalid_request", "")
}

func (s *Server) writeEstimateError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrInference) {
		writeError(w, http.StatusBadGateway, err.Error(), "inference_failed", "")
		return
	}
	s.logger.Error("[server] estimate: %v", err)
	writeError(w, http.StatusInternalServerError, "", "internal", "")
}

func (s *Server) present(e *models.Estimate) estimateResponse {
	return estimateResponse{Estimate: e, FormattedPrice: formatPrice(e.Price, s.opts.Currency)}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
