package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mediflow/clinic/pkg/types"
)

func (s *Service) doctorDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doctor, err := s.deps.Users.GetByIDAndRole(r.Context(), id, types.RoleDoctor)
	if err != nil {
		if t := types.ErrorTypeOf(err); t == types.ErrorTypeNotFound || t == types.ErrorTypeValidation {
			s.writeJSONResponse(w, http.StatusOK, response{Success: false, Message: "No doctor found"})
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	doctor.Password = ""
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Data: doctor})
}

type receptionistRequest struct {
	ReceptionistID string `json:"receptionistId"`
}

// assignReceptionistHandler links the calling doctor to a receptionist and
// re-issues the doctor's token so the new pairing is in the claims.
func (s *Service) assignReceptionistHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req receptionistRequest
	if err := decodeJSON(r, &req); err != nil || req.ReceptionistID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Receptionist ID is required")
		return
	}

	if _, err := s.deps.Users.GetByIDAndRole(r.Context(), req.ReceptionistID, types.RoleReceptionist); err != nil {
		if t := types.ErrorTypeOf(err); t == types.ErrorTypeNotFound || t == types.ErrorTypeValidation {
			s.writeErrorResponse(w, http.StatusNotFound, "Receptionist not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	if err := s.deps.Users.Update(r.Context(), claims.UserID, &types.UserUpdates{
		Receptionist: &req.ReceptionistID,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	doctor, err := s.deps.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(claims.UserID, "assign_receptionist", "user", true, map[string]interface{}{"receptionist_id": req.ReceptionistID})
	s.recordActivity(r.Context(), "Receptionist %s assigned to doctor: %s", req.ReceptionistID, claims.UserID)
	s.issueLogin(w, r, http.StatusOK, "Receptionist assigned successfully", doctor.Claims(), nil)
}
