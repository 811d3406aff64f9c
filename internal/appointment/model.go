package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clock"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no-show"
)

// Committed reports whether the status holds a claim on the clinician's time.
func (s AppointmentStatus) Committed() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	return s.Committed() || s.Terminal()
}

var CommittedStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusInProgress}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rescheduling records the interval an appointment held before it was moved.
type Rescheduling struct {
	OriginalDate  clock.Date      `json:"original_date"`
	OriginalTime  clock.TimeOfDay `json:"original_time"`
	RescheduledBy uuid.UUID       `json:"rescheduled_by"`
	RescheduledAt time.Time       `json:"rescheduled_at"`
	Reason        string          `json:"reason"`
}

type Cancellation struct {
	CancelledBy uuid.UUID `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason"`
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ClinicianID     uuid.UUID
	DepartmentID    *uuid.UUID
	Date            clock.Date
	StartTime       clock.TimeOfDay
	DurationMinutes int
	Status          AppointmentStatus
	Type            string
	Priority        Priority
	ChiefComplaint  string
	Notes           string
	ScheduledBy     *uuid.UUID
	Rescheduling    *Rescheduling
	Cancellation    *Cancellation
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) Interval() clock.Interval {
	return clock.Interval{Start: a.StartTime, Minutes: a.DurationMinutes}
}

// EndTime is the first minute after the appointment.
func (a *Appointment) EndTime() clock.TimeOfDay {
	return a.StartTime.Add(a.DurationMinutes)
}

// Slot is a candidate window on a clinician's day. It is derived on demand and
// never stored.
type Slot struct {
	Time      clock.TimeOfDay `json:"value"`
	Label     string          `json:"time"`
	Available bool            `json:"available"`
}

const (
	EventAppointmentScheduled    = "APPOINTMENT_SCHEDULED"
	EventAppointmentRescheduled  = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled    = "APPOINTMENT_CANCELLED"
	EventClinicalRecordRequested = "CLINICAL_RECORD_REQUESTED"
)

// EventLog is an outbox row committed in the same transaction as the change
// that produced it.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// ClinicalRecordRequested is emitted once, on the transition into completed.
type ClinicalRecordRequested struct {
	AppointmentID  uuid.UUID  `json:"appointment_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	ClinicianID    uuid.UUID  `json:"clinician_id"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	ChiefComplaint string     `json:"chief_complaint,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CompletedBy    uuid.UUID  `json:"completed_by"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// Event is a side effect returned to the caller alongside the new state.
type Event struct {
	Type    string
	Payload any
}

func (e Event) Log(appointmentID uuid.UUID, at time.Time) (EventLog, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return EventLog{}, err
	}
	id := appointmentID
	return EventLog{
		EventType:     e.Type,
		AppointmentID: &id,
		Payload:       data,
		CreatedAt:     at,
	}, nil
}

// Result is the outcome of a lifecycle operation.
type Result struct {
	Appointment *Appointment
	Events      []Event
}
