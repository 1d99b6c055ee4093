package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mediflow/clinic/pkg/types"
)

func (s *Service) listPrescriptionsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	prescriptions, err := s.deps.Prescriptions.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if len(prescriptions) == 0 {
		s.writeJSONResponse(w, http.StatusOK, response{Success: false, Message: "No prescriptions found for this user"})
		return
	}

	count := len(prescriptions)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Data: prescriptions, Count: &count})
}

func (s *Service) addPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req types.DirectPrescriptionRequest
	if err := decodeJSON(r, &req); err != nil ||
		strings.TrimSpace(req.Prescription) == "" || req.PatientID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Prescription and patient ID are required")
		return
	}

	id, err := s.deps.Prescriptions.Insert(r.Context(), &types.Prescription{
		User:       req.PatientID,
		Doctor:     claims.UserID,
		DoctorName: claims.Name,
		Text:       req.Prescription,
		Status:     types.PrescriptionActive,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(claims.UserID, "prescribe", "prescription", true, map[string]interface{}{
		"patient_id":      req.PatientID,
		"prescription_id": id,
	})
	s.recordActivity(r.Context(), "Prescription %s added by doctor: %s for patient: %s", id, claims.UserID, req.PatientID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "Prescription added successfully"})
}

// completePrescriptionHandler lets a patient close one of their own prescriptions
func (s *Service) completePrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	id := mux.Vars(r)["id"]

	owned, err := s.deps.Prescriptions.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !containsPrescription(owned, id) {
		s.writeErrorResponse(w, http.StatusNotFound, "Prescription not found")
		return
	}

	if err := s.deps.Prescriptions.Complete(r.Context(), id); err != nil {
		switch types.ErrorTypeOf(err) {
		case types.ErrorTypeConflict:
			s.writeErrorResponse(w, http.StatusConflict, "Prescription already completed")
		case types.ErrorTypeNotFound:
			s.writeErrorResponse(w, http.StatusNotFound, "Prescription not found")
		default:
			s.writeAppError(w, r, err)
		}
		return
	}

	s.recordActivity(r.Context(), "Prescription %s completed by user: %s", id, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "Prescription marked as completed"})
}

func containsPrescription(list []*types.Prescription, id string) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
