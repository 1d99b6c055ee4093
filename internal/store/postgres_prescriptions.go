package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

// PostgresPrescriptionStore implements interfaces.PrescriptionRepository on PostgreSQL
type PostgresPrescriptionStore struct {
	db     *database.DB
	obs    Observer
	logger *logger.Logger
}

// NewPostgresPrescriptionStore creates a relational prescription repository
func NewPostgresPrescriptionStore(db *database.DB, obs Observer, log *logger.Logger) *PostgresPrescriptionStore {
	return &PostgresPrescriptionStore{
		db:     db,
		obs:    observerOrDefault(obs),
		logger: log,
	}
}

const prescriptionColumns = `id, user_id, doctor_id, doctor_name, title, details, prescription_text,
		audio_url, audio_public_id, audio_format, status, created_at`

// Insert writes one record in a single statement
func (s *PostgresPrescriptionStore) Insert(ctx context.Context, p *types.Prescription) (string, error) {
	if p.User == "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "prescription has no patient", nil)
	}
	if p.Status == "" {
		p.Status = types.PrescriptionActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var audioURL, audioPublicID, audioFormat sql.NullString
	if p.Audio != nil {
		audioURL = sql.NullString{String: p.Audio.URL, Valid: true}
		audioPublicID = sql.NullString{String: p.Audio.PublicID, Valid: true}
		audioFormat = sql.NullString{String: p.Audio.Format, Valid: p.Audio.Format != ""}
	}

	query := `
		INSERT INTO prescriptions (
			user_id, doctor_id, doctor_name, title, details, prescription_text,
			audio_url, audio_public_id, audio_format, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var id int64
	err := s.obs.StoreOperation(ctx, systemPostgres, "insert", "prescriptions", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			p.User,
			p.Doctor,
			p.DoctorName,
			p.Title,
			p.Details,
			p.Text,
			audioURL,
			audioPublicID,
			audioFormat,
			string(p.Status),
			p.CreatedAt,
		).Scan(&id)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to insert prescription")
		return "", fmt.Errorf("failed to insert prescription: %w", err)
	}

	p.ID = strconv.FormatInt(id, 10)
	return p.ID, nil
}

// ListByUser returns a patient's prescriptions, newest first
func (s *PostgresPrescriptionStore) ListByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE user_id = $1
		ORDER BY created_at DESC`
	return s.query(ctx, query, userID)
}

// ListActiveByUser returns a patient's Active prescriptions
func (s *PostgresPrescriptionStore) ListActiveByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC`
	return s.query(ctx, query, userID, string(types.PrescriptionActive))
}

func (s *PostgresPrescriptionStore) query(ctx context.Context, query string, args ...interface{}) ([]*types.Prescription, error) {
	var out []*types.Prescription
	err := s.obs.StoreOperation(ctx, systemPostgres, "select", "prescriptions", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPrescription(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return out, nil
}

func scanPrescription(rows *sql.Rows) (*types.Prescription, error) {
	var (
		p                       types.Prescription
		id                      int64
		doctor, doctorName      sql.NullString
		title, details, text    sql.NullString
		audioURL, audioPublicID sql.NullString
		audioFormat             sql.NullString
		status                  string
	)
	if err := rows.Scan(&id, &p.User, &doctor, &doctorName, &title, &details, &text,
		&audioURL, &audioPublicID, &audioFormat, &status, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.ID = strconv.FormatInt(id, 10)
	p.Doctor = doctor.String
	p.DoctorName = doctorName.String
	p.Title = title.String
	p.Details = details.String
	p.Text = text.String
	p.Status = types.PrescriptionStatus(status)
	if audioURL.Valid {
		p.Audio = &types.AudioAttachment{URL: audioURL.String, PublicID: audioPublicID.String, Format: audioFormat.String}
	}
	return &p, nil
}

// Complete moves an Active record to Completed
func (s *PostgresPrescriptionStore) Complete(ctx context.Context, id string) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "invalid id", map[string]interface{}{"id": id})
	}

	var affected int64
	var current string
	err = s.obs.StoreOperation(ctx, systemPostgres, "update", "prescriptions", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE prescriptions SET status = $1 WHERE id = $2 AND status = $3`,
			string(types.PrescriptionCompleted), numericID, string(types.PrescriptionActive))
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil || affected > 0 {
			return err
		}
		return s.db.QueryRowContext(ctx, `SELECT status FROM prescriptions WHERE id = $1`, numericID).Scan(&current)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("prescription not found: %s", id))
	}
	if err != nil {
		return fmt.Errorf("failed to complete prescription: %w", err)
	}
	if affected == 0 {
		return types.NewConflictError(types.ErrCodeConflict, "prescription is already completed")
	}
	return nil
}
