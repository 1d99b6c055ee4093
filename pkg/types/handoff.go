package types

import (
	"encoding/json"
	"time"
)

// PatientSummary is the minimal patient identity carried by a handoff
type PatientSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// DoctorSummary identifies the sending doctor and their assigned receptionist
type DoctorSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Receptionist string `json:"receptionist,omitempty"`
}

// PrescriptionDraft is the content a receptionist may edit while a handoff is pending
type PrescriptionDraft struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

// UnmarshalJSON accepts either {title, details} or a bare free-text string,
// which becomes the details.
func (d *PrescriptionDraft) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = PrescriptionDraft{Details: text}
		return nil
	}
	type draft PrescriptionDraft
	var structured draft
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	*d = PrescriptionDraft(structured)
	return nil
}

// AudioAttachment references a voice note uploaded before the handoff
type AudioAttachment struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format,omitempty"`
}

// SendToReception is sent by a doctor to route a draft to a receptionist
type SendToReception struct {
	ReceptionistID string            `json:"receptionistId"`
	Patient        PatientSummary    `json:"patientDetails"`
	Doctor         DoctorSummary     `json:"doctorDetails"`
	Prescription   PrescriptionDraft `json:"prescription"`
	Audio          *AudioAttachment  `json:"audio,omitempty"`
}

// HandoffRequest is delivered to a receptionist and held in their pending queue
type HandoffRequest struct {
	RequestID    string            `json:"requestId"`
	Patient      PatientSummary    `json:"patientDetails"`
	Doctor       DoctorSummary     `json:"doctorDetails"`
	Prescription PrescriptionDraft `json:"prescription"`
	Audio        *AudioAttachment  `json:"audio,omitempty"`
}

// MarkAsDone is sent by a receptionist to finalize a pending handoff
type MarkAsDone struct {
	RequestID    string            `json:"requestId"`
	Patient      PatientSummary    `json:"patientDetails"`
	Doctor       DoctorSummary     `json:"doctorDetails"`
	Prescription PrescriptionDraft `json:"prescription"`
	Audio        *AudioAttachment  `json:"audio,omitempty"`
}

// RequestRemoved tells a receptionist a pending item is resolved
type RequestRemoved struct {
	RequestID string `json:"requestId"`
}

// Registration is the handshake a connection sends to publish its user
type Registration struct {
	UserID string   `json:"userid"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name"`
}

// RegistrationError reports a rejected registration to the client
type RegistrationError struct {
	Error string `json:"error"`
}

// Ack is the synchronous reply to send_to_reception and mark_as_done
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewPrescriptionFromCompletion builds the Active record persisted for a completed handoff
func NewPrescriptionFromCompletion(done *MarkAsDone, now time.Time) *Prescription {
	return &Prescription{
		User:       done.Patient.ID,
		Doctor:     done.Doctor.ID,
		DoctorName: done.Doctor.Name,
		Title:      done.Prescription.Title,
		Details:    done.Prescription.Details,
		Audio:      done.Audio,
		CreatedAt:  now,
		Status:     PrescriptionActive,
	}
}
