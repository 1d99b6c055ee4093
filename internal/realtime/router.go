package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
	"github.com/mediflow/clinic/pkg/types"
)

// Router delivers doctor handoffs to receptionist connections. Delivery is
// at most once: success means the request was queued on a live connection.
// Nothing is stored and nothing is retried.
type Router struct {
	directory *Directory
	metrics   *monitoring.MetricsCollector
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewRouter creates a router over directory
func NewRouter(directory *Directory, metrics *monitoring.MetricsCollector, log *logger.Logger) *Router {
	return &Router{
		directory: directory,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewRequestID builds a handoff id from the doctor id, a millisecond
// timestamp and a random suffix so rapid sends cannot collide.
func NewRequestID(doctorID string, now time.Time, random string) string {
	return fmt.Sprintf("%s-%d-%s", doctorID, now.UnixMilli(), random)
}

// Send routes req from sender to the receptionist it names
func (r *Router) Send(sender *Session, req *types.SendToReception) types.Ack {
	identity, registered := sender.Identity()
	if !registered {
		return r.reject("", req.ReceptionistID, "connection is not registered")
	}
	if identity.Role != types.RoleDoctor {
		return r.reject(identity.UserID, req.ReceptionistID, "only doctors can send to reception")
	}
	if req.ReceptionistID == "" {
		return r.reject(identity.UserID, "", "receptionistId is required")
	}

	requestID := NewRequestID(identity.UserID, r.now(), r.newID())

	target, online := r.directory.Lookup(req.ReceptionistID)
	if !online || target.Role != types.RoleReceptionist {
		r.metrics.RecordHandoffSend(monitoring.OutcomeOffline)
		r.logger.Handoff(types.EventSendToReception, requestID, identity.UserID, req.ReceptionistID, false,
			map[string]interface{}{"reason": "receptionist offline"})
		return types.Ack{Success: false}
	}

	doctor := req.Doctor
	doctor.ID = identity.UserID

	handoff := &types.HandoffRequest{
		RequestID:    requestID,
		Patient:      req.Patient,
		Doctor:       doctor,
		Prescription: req.Prescription,
		Audio:        req.Audio,
	}
	if err := emit(target.Conn, types.EventReceiveFromDoctor, handoff); err != nil {
		r.metrics.RecordHandoffSend(monitoring.OutcomeOffline)
		r.logger.Handoff(types.EventSendToReception, requestID, identity.UserID, req.ReceptionistID, false,
			map[string]interface{}{"reason": err.Error()})
		return types.Ack{Success: false}
	}

	r.metrics.RecordHandoffSend(monitoring.OutcomeDelivered)
	r.logger.Handoff(types.EventReceiveFromDoctor, requestID, identity.UserID, req.ReceptionistID, true,
		map[string]interface{}{"patient_id": req.Patient.ID})
	return types.Ack{Success: true}
}

func (r *Router) reject(from, to, reason string) types.Ack {
	r.metrics.RecordHandoffSend(monitoring.OutcomeRejected)
	r.logger.Handoff(types.EventSendToReception, "", from, to, false, map[string]interface{}{"reason": reason})
	return types.Ack{Success: false, Error: reason}
}
