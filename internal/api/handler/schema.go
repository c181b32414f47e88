package handler

import "time"

// --- Auth ---

type staffLoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type patientLoginRequest struct {
	CPF       string `json:"cpf"       validate:"required,len=11,numeric"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
}

type registerRequest struct {
	LoginKey string `json:"login_key" validate:"required"`
	Secret   string `json:"secret"    validate:"required,min=6"`
	Role     string `json:"role"      validate:"required,oneof=ADMIN MANAGER DOCTOR RECEPTIONIST PATIENT"`
}

type accountResponse struct {
	ID         string `json:"id"`
	LoginKey   string `json:"login_key"`
	Role       string `json:"role"`
	Active     bool   `json:"active"`
	LastAccess string `json:"last_access,omitempty"`
}

type authResponse struct {
	Token   string          `json:"token,omitempty"`
	Account accountResponse `json:"account"`
}

// --- Appointments ---

type createAppointmentRequest struct {
	ProviderID string    `json:"provider_id" validate:"required"`
	SubjectID  string    `json:"subject_id"  validate:"required"`
	StartTime  time.Time `json:"start_time"  validate:"required"`
	Notes      string    `json:"notes"`
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
}

type statusTransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=SCHEDULED CONFIRMED COMPLETED CANCELLED NO_SHOW"`
	Reason string `json:"reason"`
}

type statusChangeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

type appointmentResponse struct {
	ID            string                 `json:"id"`
	ProviderID    string                 `json:"provider_id"`
	SubjectID     string                 `json:"subject_id"`
	StartTime     time.Time              `json:"start_time"`
	Status        string                 `json:"status"`
	Notes         string                 `json:"notes,omitempty"`
	CancelReason  string                 `json:"cancel_reason,omitempty"`
	StatusHistory []statusChangeResponse `json:"status_history"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type listAppointmentsResponse struct {
	Data       []appointmentResponse `json:"data"`
	Pagination paginationResponse    `json:"pagination"`
}
