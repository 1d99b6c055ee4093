package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediflow/clinic/pkg/types"
)

// response is the envelope of resource routes
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

// messageResponse is the envelope of auth routes
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeMessage writes {"message": msg}
func (s *Service) writeMessage(w http.ResponseWriter, statusCode int, msg string) {
	s.writeJSONResponse(w, statusCode, messageResponse{Message: msg})
}

// writeErrorResponse writes {"success": false, "message": msg}
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, msg string) {
	s.writeJSONResponse(w, statusCode, response{Success: false, Message: msg})
}

// writeAppError maps err to a status code. Internal causes are logged, never returned.
func (s *Service) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)

	var appErr *types.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).Error("Request failed")
		msg = "Internal server error"
		if status == http.StatusBadGateway {
			msg = "Upstream service failed"
		}
	}
	s.writeErrorResponse(w, status, msg)
}

func statusFor(err error) int {
	switch types.ErrorTypeOf(err) {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case types.ErrorTypeAuthorization:
		return http.StatusForbidden
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case types.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil)
	}
	return nil
}
