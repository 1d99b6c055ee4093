package types

import "time"

// PrescriptionStatus represents prescription status values
type PrescriptionStatus string

const (
	PrescriptionActive    PrescriptionStatus = "Active"
	PrescriptionCompleted PrescriptionStatus = "Completed"
)

// Prescription is the durable record written once per completed handoff.
// Only Status changes after the insert, Active to Completed, exactly once.
type Prescription struct {
	ID         string             `json:"_id"`
	User       string             `json:"user"`
	Doctor     string             `json:"doctor"`
	DoctorName string             `json:"doctorName,omitempty"`
	Title      string             `json:"title,omitempty"`
	Details    string             `json:"details,omitempty"`
	Text       string             `json:"prescription,omitempty"`
	Audio      *AudioAttachment   `json:"audio,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	Status     PrescriptionStatus `json:"status"`
}

// DirectPrescriptionRequest is the body of a doctor's direct prescription write
type DirectPrescriptionRequest struct {
	Prescription string `json:"prescription"`
	PatientID    string `json:"patientId"`
}
