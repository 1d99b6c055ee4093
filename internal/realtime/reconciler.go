package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
	"github.com/mediflow/clinic/pkg/types"
)

// Reconciler persists completed handoffs and tells the submitting
// receptionist's connection that the pending item is resolved.
type Reconciler struct {
	store        interfaces.PrescriptionRepository
	metrics      *monitoring.MetricsCollector
	logger       *logger.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

// NewReconciler creates a reconciler writing to store
func NewReconciler(store interfaces.PrescriptionRepository, metrics *monitoring.MetricsCollector, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:        store,
		metrics:      metrics,
		logger:       log,
		now:          time.Now,
		storeTimeout: 10 * time.Second,
	}
}

// Complete writes one Active prescription for done. On failure nothing is
// emitted so the item stays in the receptionist's queue for a manual retry.
func (r *Reconciler) Complete(ctx context.Context, sender *Session, done *types.MarkAsDone) types.Ack {
	identity, registered := sender.Identity()
	if !registered {
		return r.reject(done, "", "connection is not registered")
	}
	if identity.Role != types.RoleReceptionist {
		return r.reject(done, identity.UserID, "only receptionists can mark requests as done")
	}
	if done.RequestID == "" {
		return r.reject(done, identity.UserID, "requestId is required")
	}
	if done.Patient.ID == "" {
		return r.reject(done, identity.UserID, "patientDetails.id is required")
	}

	record := types.NewPrescriptionFromCompletion(done, r.now().UTC())

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	id, err := r.store.Insert(storeCtx, record)
	if err != nil {
		r.metrics.RecordHandoffCompletion(monitoring.OutcomeStoreError)
		r.logger.Handoff(types.EventMarkAsDone, done.RequestID, identity.UserID, done.Doctor.ID, false,
			map[string]interface{}{"error": err.Error()})
		return types.Ack{Success: false, Error: completionError(err)}
	}

	if err := emit(sender.conn, types.EventRequestRemoved, types.RequestRemoved{RequestID: done.RequestID}); err != nil {
		r.logger.WithError(err).WithField("request_id", done.RequestID).Warn("Failed to emit request removal")
	}

	r.metrics.RecordHandoffCompletion(monitoring.OutcomePersisted)
	r.logger.Handoff(types.EventRequestRemoved, done.RequestID, identity.UserID, done.Doctor.ID, true,
		map[string]interface{}{"prescription_id": id, "patient_id": done.Patient.ID})
	return types.Ack{Success: true}
}

func (r *Reconciler) reject(done *types.MarkAsDone, from, reason string) types.Ack {
	r.metrics.RecordHandoffCompletion(monitoring.OutcomeRejected)
	r.logger.Handoff(types.EventMarkAsDone, done.RequestID, from, done.Doctor.ID, false,
		map[string]interface{}{"reason": reason})
	return types.Ack{Success: false, Error: reason}
}

// completionError keeps store internals out of the ack
func completionError(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Type == types.ErrorTypeValidation {
		return appErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out saving prescription"
	}
	return "failed to save prescription"
}
