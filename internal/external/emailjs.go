package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/types"
)

// EmailJSMailer sends templated email through the EmailJS REST endpoint
type EmailJSMailer struct {
	cfg    config.EmailJSConfig
	client *http.Client
}

// NewEmailJSMailer creates a mailer from the emailjs config section
func NewEmailJSMailer(cfg config.EmailJSConfig) *EmailJSMailer {
	return &EmailJSMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// SendResetCode emails a password reset code
func (m *EmailJSMailer) SendResetCode(ctx context.Context, email, code string) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:   m.cfg.ServiceID,
		TemplateID:  m.cfg.TemplateID,
		UserID:      m.cfg.PublicKey,
		AccessToken: m.cfg.PrivateKey,
		TemplateParams: map[string]string{
			"email":    email,
			"passcode": code,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return types.NewExternalError(types.ErrCodeExternalError, "failed to send email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewExternalError(types.ErrCodeExternalError, "failed to send email",
			fmt.Errorf("emailjs returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}
	return nil
}
