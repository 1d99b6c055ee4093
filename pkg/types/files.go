package types

import "time"

// FileRecord represents an uploaded patient document
type FileRecord struct {
	ID           string    `json:"_id"`
	User         string    `json:"user"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	PublicID     string    `json:"public_id"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resource_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// BlobUploadResult is what the blob service reports for a stored object
type BlobUploadResult struct {
	URL          string    `json:"url"`
	PublicID     string    `json:"public_id"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resource_type,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// BlobKind selects the storage folder and resource type of an upload
type BlobKind string

const (
	BlobDocument BlobKind = "document"
	BlobAudio    BlobKind = "audio"
)

// AccessEntry grants a doctor read access to a patient's records
type AccessEntry struct {
	ID     string `json:"_id"`
	User   string `json:"user"`
	Doctor string `json:"doctor"`
}

// PatientDetails is the password-free patient view returned to authorized readers
type PatientDetails struct {
	*User
	Files         []*FileRecord   `json:"files"`
	Prescriptions []*Prescription `json:"prescriptions"`
}

// ActivityLog is one entry in the activity trail
type ActivityLog struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AskRequest is a question for the medication assistant
type AskRequest struct {
	Text    string   `json:"text"`
	Context []string `json:"context"`
}
