package realtime

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
	"github.com/mediflow/clinic/pkg/types"
)

// fakeConn records every frame sent to it
type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  []*types.Envelope
	closed  bool
	sendErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(env *types.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return ErrConnectionClosed
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(name string) []*types.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*types.Envelope
	for _, f := range c.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) lastAck(t *testing.T) types.Ack {
	t.Helper()
	acks := c.events(types.EventAck)
	require.NotEmpty(t, acks, "no ack frame sent")
	var ack types.Ack
	require.NoError(t, acks[len(acks)-1].Decode(&ack))
	return ack
}

// MockPrescriptionRepository is a mock implementation of PrescriptionRepository
type MockPrescriptionRepository struct {
	mock.Mock
}

func (m *MockPrescriptionRepository) Insert(ctx context.Context, p *types.Prescription) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *MockPrescriptionRepository) ListByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*types.Prescription), args.Error(1)
}

func (m *MockPrescriptionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*types.Prescription), args.Error(1)
}

func (m *MockPrescriptionRepository) Complete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// staticTokens maps raw tokens to claims
type staticTokens map[string]*types.UserClaims

func (s staticTokens) ValidateToken(token string) (*types.UserClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return claims, nil
}

func newTestHub(tokens TokenValidator, repo *MockPrescriptionRepository) *Hub {
	return NewHub(HubConfig{}, tokens, repo,
		monitoring.NewMetricsCollector("realtime-test"),
		monitoring.NewNoopTracingManager("realtime-test"),
		logger.NewWithOutput("error", io.Discard))
}

var (
	doctorClaims       = &types.UserClaims{UserID: "d1", Name: "Dr. Bob", Role: types.RoleDoctor, Receptionist: "r1"}
	receptionistClaims = &types.UserClaims{UserID: "r1", Name: "Rita", Role: types.RoleReceptionist}
)

// registeredSession returns a session that completed the handshake
func registeredSession(t *testing.T, hub *Hub, conn *fakeConn, claims *types.UserClaims) *Session {
	t.Helper()
	s := newSession(conn, claims, hub)
	s.register(&types.Registration{UserID: claims.UserID, Role: claims.Role, Name: claims.Name})
	require.Equal(t, StateRegistered, s.State())
	return s
}

func fluHandoff() *types.SendToReception {
	return &types.SendToReception{
		ReceptionistID: "r1",
		Patient:        types.PatientSummary{ID: "p1", Name: "Alice"},
		Doctor:         types.DoctorSummary{ID: "d1", Name: "Dr. Bob"},
		Prescription:   types.PrescriptionDraft{Title: "Flu", Details: "Rest and fluids"},
	}
}
