package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mediflow/clinic/pkg/types"
)

// SessionState is the registration state of one connection
type SessionState int

const (
	StateUnregistered SessionState = iota
	StateRegistered
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Session binds one connection to the identity its token proved
type Session struct {
	conn   Conn
	claims *types.UserClaims
	hub    *Hub
	log    *logrus.Entry

	mu       sync.Mutex
	state    SessionState
	identity types.Registration
}

func newSession(conn Conn, claims *types.UserClaims, hub *Hub) *Session {
	return &Session{
		conn:   conn,
		claims: claims,
		hub:    hub,
		log: hub.logger.WithFields(logrus.Fields{
			"component": "realtime",
			"conn_id":   conn.ID(),
			"user_id":   claims.UserID,
		}),
		state: StateUnregistered,
	}
}

// State returns the current registration state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the registered identity; ok is false until registration succeeds
func (s *Session) Identity() (identity types.Registration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.state == StateRegistered
}

// Handle dispatches one client frame
func (s *Session) Handle(ctx context.Context, env *types.Envelope) {
	ctx, span := s.hub.tracing.StartHandoffSpan(ctx, env.Event, s.claims.UserID)
	defer span.End()

	switch env.Event {
	case types.EventUserConnected:
		var reg types.Registration
		if err := env.Decode(&reg); err != nil {
			s.rejectRegistration(err.Error())
			return
		}
		s.register(&reg)

	case types.EventSendToReception:
		var req types.SendToReception
		if err := env.Decode(&req); err != nil {
			s.answer(env.ID, types.Ack{Success: false, Error: err.Error()})
			return
		}
		s.answer(env.ID, s.hub.router.Send(s, &req))

	case types.EventMarkAsDone:
		var done types.MarkAsDone
		if err := env.Decode(&done); err != nil {
			s.answer(env.ID, types.Ack{Success: false, Error: err.Error()})
			return
		}
		s.answer(env.ID, s.hub.reconciler.Complete(ctx, s, &done))

	default:
		s.log.WithField("event", env.Event).Debug("Ignoring unknown event")
		s.answer(env.ID, types.Ack{Success: false, Error: fmt.Sprintf("unknown event %q", env.Event)})
	}
}

// register publishes the session in the directory. The claimed userid and role
// must match the token; an empty name falls back to the token name.
func (s *Session) register(reg *types.Registration) {
	if reg.UserID == "" || reg.Role == "" {
		s.rejectRegistration("userid and role are required")
		return
	}
	if reg.UserID != s.claims.UserID || reg.Role != s.claims.Role {
		s.hub.logger.Security("realtime_identity_mismatch", s.claims.UserID, map[string]interface{}{
			"claimed_user": reg.UserID,
			"claimed_role": reg.Role,
		})
		s.rejectRegistration("registration does not match the authenticated user")
		return
	}

	name := reg.Name
	if name == "" {
		name = s.claims.Name
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateRegistered
	s.identity = types.Registration{UserID: reg.UserID, Role: reg.Role, Name: name}
	s.mu.Unlock()

	s.hub.directory.Register(reg.UserID, reg.Role, name, s.conn)
	s.hub.metrics.RecordRegistration(true)
	s.hub.metrics.SetRegisteredUsers(s.hub.directory.Len())
	s.log.WithField("role", reg.Role).Info("Session registered")
}

func (s *Session) rejectRegistration(reason string) {
	s.hub.metrics.RecordRegistration(false)
	s.log.WithField("reason", reason).Warn("Registration rejected")
	if err := emit(s.conn, types.EventRegistrationError, types.RegistrationError{Error: reason}); err != nil {
		s.log.WithError(err).Debug("Failed to report registration error")
	}
}

// terminate moves the session to Terminated and drops its directory entry
func (s *Session) terminate() {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()

	if s.hub.directory.Unregister(s.conn) {
		s.log.Info("Session unregistered")
	}
	s.hub.metrics.SetRegisteredUsers(s.hub.directory.Len())
}

func (s *Session) answer(id *int64, ack types.Ack) {
	if err := reply(s.conn, id, ack); err != nil {
		s.log.WithError(err).Debug("Failed to send ack")
	}
}
