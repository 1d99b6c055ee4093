package api

import (
	"net/http"

	"github.com/mediflow/clinic/pkg/types"
)

func (s *Service) setupRoutes() {
	s.router.HandleFunc("/", s.welcomeHandler).Methods("GET")

	if s.deps.Health != nil {
		s.router.HandleFunc(s.path(s.config.Monitoring.HealthPath, "/health"), s.deps.Health.HTTPHandler()).Methods("GET")
	}
	if s.metrics != nil {
		s.router.Handle(s.path(s.config.Monitoring.MetricsPath, "/metrics"), s.metrics.Handler()).Methods("GET")
	}
	if s.deps.Realtime != nil {
		s.router.Handle(s.path(s.config.Realtime.Path, "/ws"), s.deps.Realtime).Methods("GET")
	}

	// Accounts
	s.router.HandleFunc("/signup", s.signupHandler).Methods("POST")
	s.router.HandleFunc("/login", s.loginHandler).Methods("POST")
	s.router.HandleFunc("/login/reset-code", s.resetCodeHandler).Methods("POST")
	s.router.HandleFunc("/login/reset-password", s.resetPasswordHandler).Methods("POST")
	s.router.HandleFunc("/auth/google", s.googleAuthHandler).Methods("POST")
	s.router.Handle("/auth/google/complete", s.authenticated(http.HandlerFunc(s.completeProfileHandler))).Methods("PUT")
	s.router.Handle("/me", s.authenticated(http.HandlerFunc(s.meHandler))).Methods("GET")
	s.router.Handle("/me", s.authenticated(s.requireProfile(http.HandlerFunc(s.deleteMeHandler)))).Methods("DELETE")

	// Doctors
	s.router.HandleFunc("/doctor/detailes/{id}", s.doctorDetailsHandler).Methods("GET")
	s.router.Handle("/doctor/receptionist", s.protected(http.HandlerFunc(s.assignReceptionistHandler), types.RoleDoctor)).Methods("PUT")

	// Patient records
	patient := s.router.PathPrefix("/patient").Subrouter()
	patient.Handle("/files", s.protected(http.HandlerFunc(s.listFilesHandler))).Methods("GET")
	patient.Handle("/file/{fileId}", s.protected(http.HandlerFunc(s.deleteFileHandler))).Methods("DELETE")
	patient.Handle("/accesslist", s.protected(http.HandlerFunc(s.accessListHandler), types.RolePatient)).Methods("GET")
	patient.Handle("/doc", s.protected(http.HandlerFunc(s.addDoctorHandler), types.RolePatient)).Methods("POST")
	patient.Handle("/doc/{doctorId}", s.protected(http.HandlerFunc(s.removeDoctorHandler), types.RolePatient)).Methods("DELETE")
	patient.Handle("/details", s.protected(http.HandlerFunc(s.patientDetailsHandler))).Methods("GET")

	// Prescriptions
	s.router.Handle("/prescription", s.protected(http.HandlerFunc(s.listPrescriptionsHandler))).Methods("GET")
	s.router.Handle("/prescription/doc", s.protected(http.HandlerFunc(s.addPrescriptionHandler), types.RoleDoctor)).Methods("POST")
	s.router.Handle("/prescription/{id}/complete", s.protected(http.HandlerFunc(s.completePrescriptionHandler))).Methods("PUT")

	// Uploads
	s.router.Handle("/upload", s.protected(http.HandlerFunc(s.uploadFileHandler))).Methods("POST")
	s.router.Handle("/upload/audio", s.protected(http.HandlerFunc(s.uploadAudioHandler))).Methods("POST")

	// Assistant
	s.router.Handle("/ai/ask", s.protected(s.rateLimited(s.askLimiter, http.HandlerFunc(s.askHandler)))).Methods("POST")
}

func (s *Service) path(configured, fallback string) string {
	if configured == "" {
		return fallback
	}
	return configured
}

// protected requires a valid token for a completed profile, and one of roles when given
func (s *Service) protected(next http.Handler, roles ...types.UserRole) http.Handler {
	if len(roles) > 0 {
		next = s.requireRole(next, roles...)
	}
	return s.authenticated(s.requireProfile(next))
}

func (s *Service) welcomeHandler(w http.ResponseWriter, r *http.Request) {
	s.writeMessage(w, http.StatusOK, "Welcome to Mediflow API")
}
