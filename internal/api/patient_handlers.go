package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mediflow/clinic/pkg/types"
)

// maxListedFiles caps the file list of GET /patient/files
const maxListedFiles = 10

func (s *Service) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	files, err := s.deps.Files.ListByUser(r.Context(), claims.UserID, maxListedFiles)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	if len(files) == 0 {
		s.writeJSONResponse(w, http.StatusOK, response{Success: false, Message: "No files found"})
		return
	}

	count := len(files)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Data: files, Count: &count})
}

func (s *Service) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	fileID := mux.Vars(r)["fileId"]

	file, err := s.deps.Files.GetForUser(r.Context(), fileID, claims.UserID)
	if err != nil {
		if types.ErrorTypeOf(err) == types.ErrorTypeNotFound {
			s.writeErrorResponse(w, http.StatusNotFound, "File not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	if err := s.deps.Blobs.Destroy(r.Context(), file.PublicID, file.ResourceType); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).
			WithField("public_id", file.PublicID).Warn("Failed to destroy blob, removing record anyway")
	}
	if err := s.deps.Files.DeleteForUser(r.Context(), fileID, claims.UserID); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.recordActivity(r.Context(), "File deleted successfully. File ID: %s, User ID: %s", fileID, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "File deleted successfully"})
}

func (s *Service) accessListHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	entries, err := s.deps.AccessList.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.recordActivity(r.Context(), "Fetched access list for user: %s, found %d entries", claims.UserID, len(entries))
	count := len(entries)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Data: entries, Count: &count})
}

type accessRequest struct {
	DoctorID string `json:"doctorId"`
}

func (s *Service) addDoctorHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req accessRequest
	if err := decodeJSON(r, &req); err != nil || req.DoctorID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Doctor ID is required")
		return
	}

	if _, err := s.deps.Users.GetByIDAndRole(r.Context(), req.DoctorID, types.RoleDoctor); err != nil {
		if t := types.ErrorTypeOf(err); t == types.ErrorTypeNotFound || t == types.ErrorTypeValidation {
			s.writeErrorResponse(w, http.StatusNotFound, "Doctor not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	if err := s.deps.AccessList.Add(r.Context(), claims.UserID, req.DoctorID); err != nil {
		if types.ErrorTypeOf(err) == types.ErrorTypeConflict {
			s.writeErrorResponse(w, http.StatusOK, "Doctor already in access list")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(claims.UserID, "grant_access", "access_list", true, map[string]interface{}{"doctor_id": req.DoctorID})
	s.recordActivity(r.Context(), "Doctor %s added to access list for user: %s", req.DoctorID, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "Doctor added to access list"})
}

func (s *Service) removeDoctorHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	doctorID := mux.Vars(r)["doctorId"]

	if err := s.deps.AccessList.Remove(r.Context(), claims.UserID, doctorID); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(claims.UserID, "revoke_access", "access_list", true, map[string]interface{}{"doctor_id": doctorID})
	s.recordActivity(r.Context(), "Doctor %s removed from access list for user: %s", doctorID, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "Doctor removed from access list"})
}

// patientDetailsHandler returns a patient's profile, files and prescriptions.
// Doctors need a grant on the patient's access list; patients may only read themselves.
func (s *Service) patientDetailsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	patientID := r.URL.Query().Get("patientId")
	if patientID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Patient ID is required")
		return
	}

	switch claims.Role {
	case types.RolePatient:
		if patientID != claims.UserID {
			s.logger.PHIAccess(r.Context(), claims.UserID, patientID, "read", "patient_details", false, nil)
			s.writeErrorResponse(w, http.StatusForbidden, "Access denied")
			return
		}
	case types.RoleDoctor:
		granted, err := s.deps.AccessList.Exists(r.Context(), patientID, claims.UserID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		if !granted {
			s.logger.PHIAccess(r.Context(), claims.UserID, patientID, "read", "patient_details", false,
				map[string]interface{}{"reason": "not on access list"})
			s.writeErrorResponse(w, http.StatusForbidden, "Access denied")
			return
		}
	}

	patient, err := s.deps.Users.GetByIDAndRole(r.Context(), patientID, types.RolePatient)
	if err != nil {
		if t := types.ErrorTypeOf(err); t == types.ErrorTypeNotFound || t == types.ErrorTypeValidation {
			s.writeErrorResponse(w, http.StatusNotFound, "Patient not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	files, err := s.deps.Files.ListByUser(r.Context(), patientID, 0)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	prescriptions, err := s.deps.Prescriptions.ListByUser(r.Context(), patientID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	patient.Password = ""
	s.logger.PHIAccess(r.Context(), claims.UserID, patientID, "read", "patient_details", true, map[string]interface{}{"role": claims.Role})
	s.recordActivity(r.Context(), "Patient details fetched for patient: %s by user: %s", patientID, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{
		Success: true,
		Data: &types.PatientDetails{
			User:          patient,
			Files:         files,
			Prescriptions: prescriptions,
		},
	})
}
