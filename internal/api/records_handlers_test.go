package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/clinic/pkg/types"
)

func TestListPrescriptions(t *testing.T) {
	env := newTestEnv(t)
	env.prescriptions.On("ListByUser", mock.Anything, "p1").Return([]*types.Prescription{}, nil).Once()
	env.prescriptions.On("ListByUser", mock.Anything, "p1").
		Return([]*types.Prescription{{ID: "rx1"}, {ID: "rx2"}}, nil)

	token := env.token(t, patientClaims)

	rec := env.do(t, "GET", "/prescription", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No prescriptions found for this user", body["message"])

	rec = env.do(t, "GET", "/prescription", nil, token)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
}

func TestAddPrescription(t *testing.T) {
	env := newTestEnv(t)
	env.prescriptions.On("Insert", mock.Anything, mock.MatchedBy(func(p *types.Prescription) bool {
		return p.User == "p1" && p.Doctor == "d1" && p.DoctorName == "Dr. Bob" &&
			p.Text == "Amoxicillin 500mg" && p.Status == types.PrescriptionActive
	})).Return("rx1", nil)

	token := env.token(t, doctorClaims)

	rec := env.do(t, "POST", "/prescription/doc", map[string]string{"prescription": "Amoxicillin 500mg"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/prescription/doc", map[string]string{"prescription": "Amoxicillin 500mg", "patientId": "p1"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Prescription added successfully", decodeBody(t, rec)["message"])
	env.prescriptions.AssertExpectations(t)
}

func TestCompletePrescription(t *testing.T) {
	env := newTestEnv(t)
	env.prescriptions.On("ListByUser", mock.Anything, "p1").Return([]*types.Prescription{{ID: "rx1"}}, nil)
	env.prescriptions.On("Complete", mock.Anything, "rx1").Return(nil).Once()
	env.prescriptions.On("Complete", mock.Anything, "rx1").
		Return(types.NewConflictError(types.ErrCodeConflict, "prescription already completed"))

	token := env.token(t, patientClaims)

	rec := env.do(t, "PUT", "/prescription/rx9/complete", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "PUT", "/prescription/rx1/complete", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "PUT", "/prescription/rx1/complete", nil, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func multipartRequest(t *testing.T, path, field, filename string, extra map[string]string, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 fake"))
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env.blobs.On("Upload", mock.Anything, types.BlobDocument, mock.Anything).Return(&types.BlobUploadResult{
		URL:          "https://cdn/scan.pdf",
		PublicID:     "Mediflow_(Zense)/scan",
		Format:       "pdf",
		ResourceType: "image",
		CreatedAt:    created,
	}, nil)
	env.files.On("Insert", mock.Anything, mock.MatchedBy(func(f *types.FileRecord) bool {
		return f.User == "p1" && f.Filename == "Blood test" && f.PublicID == "Mediflow_(Zense)/scan" && f.CreatedAt.Equal(created)
	})).Return("f1", nil)

	token := env.token(t, patientClaims)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, multipartRequest(t, "/upload", "", "", map[string]string{"filename": "x"}, token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decodeBody(t, rec)["message"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, multipartRequest(t, "/upload", "file", "scan.pdf", map[string]string{"filename": "Blood test"}, token))
	assert.Equal(t, http.StatusOK, rec.Code)
	env.files.AssertExpectations(t)
}

func TestUploadFile_RecordFailureDestroysBlob(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.On("Upload", mock.Anything, types.BlobDocument, mock.Anything).
		Return(&types.BlobUploadResult{PublicID: "Mediflow_(Zense)/scan", ResourceType: "image"}, nil)
	env.blobs.On("Destroy", mock.Anything, "Mediflow_(Zense)/scan", "image").Return(nil)
	env.files.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("mongo unavailable"))

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, multipartRequest(t, "/upload", "file", "scan.pdf", nil, env.token(t, patientClaims)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo")
	env.blobs.AssertExpectations(t)
}

func TestUploadAudio(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.On("Upload", mock.Anything, types.BlobAudio, mock.Anything).Return(&types.BlobUploadResult{
		URL:      "https://cdn/note.webm",
		PublicID: "Mediflow_Audio/note",
		Format:   "webm",
	}, nil)

	token := env.token(t, doctorClaims)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, multipartRequest(t, "/upload/audio", "file", "note.webm", nil, token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No audio file uploaded", decodeBody(t, rec)["message"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, multipartRequest(t, "/upload/audio", "audio", "note.webm", nil, token))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://cdn/note.webm", body["url"])
	assert.Equal(t, "Mediflow_Audio/note", body["public_id"])
	assert.Equal(t, "webm", body["format"])
	env.files.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAsk(t *testing.T) {
	env := newTestEnv(t)
	env.prescriptions.On("ListActiveByUser", mock.Anything, "p1").
		Return([]*types.Prescription{{Title: "Flu", Details: "Oseltamivir 75mg"}}, nil)
	env.assistant.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Title Flu, Details Oseltamivir 75mg") &&
			strings.HasSuffix(prompt, "User question: Can I drink coffee?")
	})).Return("Yes, in moderation.", nil)

	token := env.token(t, patientClaims)

	rec := env.do(t, "POST", "/ai/ask", map[string]string{"text": ""}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valid text input is required", decodeBody(t, rec)["error"])

	rec = env.do(t, "POST", "/ai/ask", map[string]string{"text": "Can I drink coffee?"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Yes, in moderation.", decodeBody(t, rec)["text"])

	rec = env.do(t, "POST", "/ai/ask", map[string]string{"text": "Can I drink coffee?"}, token)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAsk_AssistantFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prescriptions.On("ListActiveByUser", mock.Anything, "p1").Return([]*types.Prescription{}, nil)
	env.assistant.On("Generate", mock.Anything, mock.Anything).
		Return("", types.NewExternalError(types.ErrCodeExternalError, "failed to generate response", errors.New("quota")))

	rec := env.do(t, "POST", "/ai/ask", map[string]string{"text": "hello"}, env.token(t, patientClaims))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate response", decodeBody(t, rec)["error"])
}
