package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mediflow/clinic/pkg/types"
)

func TestObjectID_RejectsGarbage(t *testing.T) {
	_, err := objectID("fileId", "not-hex")
	assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))

	oid := bson.NewObjectID()
	parsed, err := objectID("fileId", oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, parsed)
}

func TestPrescriptionDocument_RoundTripsCompletion(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	done := &types.MarkAsDone{
		RequestID:    "d1-1",
		Patient:      types.PatientSummary{ID: "p1", Name: "Alice"},
		Doctor:       types.DoctorSummary{ID: "d1", Name: "Dr. Bob"},
		Prescription: types.PrescriptionDraft{Title: "Flu", Details: "Rest and fluids"},
		Audio:        &types.AudioAttachment{URL: "https://cdn/a.webm", PublicID: "a", Format: "webm"},
	}

	doc, err := prescriptionToDocument(types.NewPrescriptionFromCompletion(done, now))
	require.NoError(t, err)
	assert.Equal(t, "p1", doc.User)
	assert.Equal(t, "d1", doc.Doctor)
	assert.Equal(t, types.PrescriptionActive, doc.Status)

	back := doc.toPrescription()
	assert.Equal(t, "Rest and fluids", back.Details)
	assert.Equal(t, now, back.CreatedAt)
	require.NotNil(t, back.Audio)
	assert.Equal(t, "a", back.Audio.PublicID)
	assert.Equal(t, "webm", back.Audio.Format)
}

func TestPrescriptionDocument_DefaultsStatus(t *testing.T) {
	doc, err := prescriptionToDocument(&types.Prescription{User: "p1", Text: "Paracetamol 500mg"})
	require.NoError(t, err)
	assert.Equal(t, types.PrescriptionActive, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = prescriptionToDocument(&types.Prescription{Text: "orphan"})
	assert.Error(t, err)
}

func TestUserToDocument_NormalizesEmail(t *testing.T) {
	doc := userToDocument(&types.User{Email: "  Alice@Example.COM "})
	assert.Equal(t, "alice@example.com", doc.Email)
}
