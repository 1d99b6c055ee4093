package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the relational prescription tables when they are missing
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	for _, stmt := range []string{createPrescriptionsTable, addAudioFormatColumn, createPrescriptionsIndexes} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// Prescriptions mirror the document store layout. Status only moves from
// Active to Completed; every other column is written once.
const createPrescriptionsTable = `
CREATE TABLE IF NOT EXISTS prescriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    doctor_id VARCHAR(64),
    doctor_name VARCHAR(255),
    title VARCHAR(255),
    details TEXT,
    prescription_text TEXT,
    audio_url TEXT,
    audio_public_id VARCHAR(255),
    audio_format VARCHAR(32),
    status VARCHAR(16) NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Completed')),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);`

// Tables created before the audio format was stored lack the column.
const addAudioFormatColumn = `
ALTER TABLE prescriptions ADD COLUMN IF NOT EXISTS audio_format VARCHAR(32);`

const createPrescriptionsIndexes = `
CREATE INDEX IF NOT EXISTS idx_prescriptions_user_id ON prescriptions(user_id);
CREATE INDEX IF NOT EXISTS idx_prescriptions_user_status ON prescriptions(user_id, status);
CREATE INDEX IF NOT EXISTS idx_prescriptions_doctor_id ON prescriptions(doctor_id);`
