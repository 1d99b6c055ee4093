package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/clinic/pkg/types"
)

func TestListFiles(t *testing.T) {
	env := newTestEnv(t)
	env.files.On("ListByUser", mock.Anything, "p1", int64(10)).Return([]*types.FileRecord{}, nil).Once()
	env.files.On("ListByUser", mock.Anything, "p1", int64(10)).
		Return([]*types.FileRecord{{ID: "f1", Filename: "scan.pdf"}}, nil)

	token := env.token(t, patientClaims)

	rec := env.do(t, "GET", "/patient/files", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No files found", body["message"])

	rec = env.do(t, "GET", "/patient/files", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t)
	file := &types.FileRecord{ID: "f1", User: "p1", PublicID: "Mediflow_(Zense)/f1", ResourceType: "image"}
	env.files.On("GetForUser", mock.Anything, "f1", "p1").Return(file, nil)
	env.files.On("GetForUser", mock.Anything, "f2", "p1").Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "file not found"))
	env.files.On("DeleteForUser", mock.Anything, "f1", "p1").Return(nil)
	env.blobs.On("Destroy", mock.Anything, "Mediflow_(Zense)/f1", "image").Return(errors.New("cloudinary down"))

	token := env.token(t, patientClaims)

	rec := env.do(t, "DELETE", "/patient/file/f2", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "DELETE", "/patient/file/f1", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	env.files.AssertExpectations(t)
	env.blobs.AssertExpectations(t)
	assert.Equal(t, []string{"File deleted successfully. File ID: f1, User ID: p1"}, env.activity.messages)
}

func TestAccessList(t *testing.T) {
	env := newTestEnv(t)
	env.access.On("ListByUser", mock.Anything, "p1").Return([]*types.AccessEntry{{User: "p1", Doctor: "d1"}}, nil)
	env.users.On("GetByIDAndRole", mock.Anything, "d1", types.RoleDoctor).Return(&types.User{ID: "d1"}, nil)
	env.users.On("GetByIDAndRole", mock.Anything, "d9", types.RoleDoctor).Return(nil, notFoundErr())
	env.access.On("Add", mock.Anything, "p1", "d1").Return(nil).Once()
	env.access.On("Add", mock.Anything, "p1", "d1").Return(types.NewConflictError(types.ErrCodeConflict, "doctor already in access list"))
	env.access.On("Remove", mock.Anything, "p1", "d1").Return(nil)

	token := env.token(t, patientClaims)

	rec := env.do(t, "GET", "/patient/accesslist", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/patient/doc", map[string]string{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/patient/doc", map[string]string{"doctorId": "d9"}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "POST", "/patient/doc", map[string]string{"doctorId": "d1"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/patient/doc", map[string]string{"doctorId": "d1"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Doctor already in access list", body["message"])

	rec = env.do(t, "DELETE", "/patient/doc/d1", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		"Fetched access list for user: p1, found 1 entries",
		"Doctor d1 added to access list for user: p1",
		"Doctor d1 removed from access list for user: p1",
	}, env.activity.messages)
}

func expectPatientRecord(env *testEnv) {
	env.users.On("GetByIDAndRole", mock.Anything, "p1", types.RolePatient).
		Return(&types.User{ID: "p1", Name: "Alice", Role: types.RolePatient, Password: "secret-hash"}, nil)
	env.files.On("ListByUser", mock.Anything, "p1", int64(0)).Return([]*types.FileRecord{{ID: "f1"}}, nil)
	env.prescriptions.On("ListByUser", mock.Anything, "p1").
		Return([]*types.Prescription{{ID: "rx1", Status: types.PrescriptionActive}}, nil)
}

func TestPatientDetails(t *testing.T) {
	t.Run("doctor on access list", func(t *testing.T) {
		env := newTestEnv(t)
		env.access.On("Exists", mock.Anything, "p1", "d1").Return(true, nil)
		expectPatientRecord(env)

		rec := env.do(t, "GET", "/patient/details?patientId=p1", nil, env.token(t, doctorClaims))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret-hash")

		data := decodeBody(t, rec)["data"].(map[string]interface{})
		assert.Equal(t, "Alice", data["name"])
		assert.Len(t, data["files"], 1)
		assert.Len(t, data["prescriptions"], 1)
		assert.Equal(t, []string{"Patient details fetched for patient: p1 by user: d1"}, env.activity.messages)
	})

	t.Run("doctor without grant", func(t *testing.T) {
		env := newTestEnv(t)
		env.access.On("Exists", mock.Anything, "p1", "d1").Return(false, nil)

		rec := env.do(t, "GET", "/patient/details?patientId=p1", nil, env.token(t, doctorClaims))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		env.users.AssertNotCalled(t, "GetByIDAndRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("patient reading someone else", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "GET", "/patient/details?patientId=p2", nil, env.token(t, patientClaims))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("patient reading self", func(t *testing.T) {
		env := newTestEnv(t)
		expectPatientRecord(env)
		rec := env.do(t, "GET", "/patient/details?patientId=p1", nil, env.token(t, patientClaims))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("receptionist", func(t *testing.T) {
		env := newTestEnv(t)
		expectPatientRecord(env)
		rec := env.do(t, "GET", "/patient/details?patientId=p1", nil,
			env.token(t, &types.UserClaims{UserID: "r1", Role: types.RoleReceptionist}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing patient id", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "GET", "/patient/details", nil, env.token(t, patientClaims))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
