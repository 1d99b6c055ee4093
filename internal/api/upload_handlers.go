package api

import (
	"errors"
	"net/http"

	"github.com/mediflow/clinic/internal/external"
	"github.com/mediflow/clinic/pkg/types"
)

func (s *Service) uploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeErrorResponse(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	filename := r.FormValue("filename")
	if filename == "" {
		filename = header.Filename
	}

	stored, err := s.deps.Blobs.Upload(r.Context(), types.BlobDocument, file)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	record := &types.FileRecord{
		User:         claims.UserID,
		Filename:     filename,
		URL:          stored.URL,
		PublicID:     stored.PublicID,
		Format:       stored.Format,
		ResourceType: stored.ResourceType,
		CreatedAt:    stored.CreatedAt,
	}
	if _, err := s.deps.Files.Insert(r.Context(), record); err != nil {
		if derr := s.deps.Blobs.Destroy(r.Context(), stored.PublicID, stored.ResourceType); derr != nil {
			s.logger.WithContext(r.Context()).WithError(derr).Warn("Failed to destroy orphaned blob")
		}
		s.writeAppError(w, r, err)
		return
	}

	s.recordActivity(r.Context(), "File uploaded successfully. File ID: %s, User ID: %s", record.ID, claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Data: record})
}

// uploadAudioHandler stores a voice note and returns the attachment a
// handoff carries; no file record is kept.
func (s *Service) uploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeErrorResponse(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	defer file.Close()

	stored, err := s.deps.Blobs.Upload(r.Context(), types.BlobAudio, file)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, types.AudioAttachment{
		URL:      stored.URL,
		PublicID: stored.PublicID,
		Format:   stored.Format,
	})
}

func (s *Service) askHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req types.AskRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == "" {
		s.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Valid text input is required"})
		return
	}

	active, err := s.deps.Prescriptions.ListActiveByUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	text, err := s.deps.Assistant.Generate(r.Context(), external.MedicationPrompt(active, req.Context, req.Text))
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Assistant failed")
		s.writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate response"})
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"text": text})
}
