package clinicalrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const (
	RecordTypeConsultation = "consultation"
	StatusCompleted        = "completed"
	DefaultNotes           = "No additional notes"
)

// Record is the clinical record opened when an appointment completes.
type Record struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	PatientID      uuid.UUID
	ClinicianID    uuid.UUID
	DepartmentID   *uuid.UUID
	RecordType     string
	RecordDate     time.Time
	ChiefComplaint string
	Notes          string
	Status         string
	CreatedBy      *uuid.UUID // actor who completed the appointment
	CreatedAt      time.Time
}

// Store persists records. Create reports false when a record for the same
// appointment already exists.
type Store interface {
	Create(ctx context.Context, r *Record) (bool, error)
}

// Handler turns ClinicalRecordRequested events into records. Delivery is
// at-least-once, so a redelivered event is a no-op.
type Handler struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("component", "clinical_record").Logger(),
		now:   time.Now,
	}
}

// FromEvent builds the record a completed appointment should open.
func FromEvent(ev appointment.ClinicalRecordRequested, now time.Time) Record {
	notes := strings.TrimSpace(ev.Notes)
	if notes == "" {
		notes = DefaultNotes
	}
	recordDate := ev.CompletedAt
	if recordDate.IsZero() {
		recordDate = now
	}
	var createdBy *uuid.UUID
	if ev.CompletedBy != uuid.Nil {
		by := ev.CompletedBy
		createdBy = &by
	}
	return Record{
		ID:             uuid.New(),
		AppointmentID:  ev.AppointmentID,
		PatientID:      ev.PatientID,
		ClinicianID:    ev.ClinicianID,
		DepartmentID:   ev.DepartmentID,
		RecordType:     RecordTypeConsultation,
		RecordDate:     recordDate,
		ChiefComplaint: ev.ChiefComplaint,
		Notes:          notes,
		Status:         StatusCompleted,
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}
}

// Handle decodes a raw event body and creates the record.
func (h *Handler) Handle(ctx context.Context, eventType string, body []byte) error {
	if eventType != appointment.EventClinicalRecordRequested {
		h.log.Debug().Str("event_type", eventType).Msg("ignoring event")
		return nil
	}

	var ev appointment.ClinicalRecordRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.AppointmentID == uuid.Nil {
		return fmt.Errorf("%w: missing appointment_id", ErrMalformedEvent)
	}

	rec := FromEvent(ev, h.now())
	created, err := h.store.Create(ctx, &rec)
	if err != nil {
		return fmt.Errorf("create clinical record: %w", err)
	}

	if !created {
		h.log.Info().Str("appointment_id", ev.AppointmentID.String()).Msg("clinical record already exists")
		return nil
	}
	h.log.Info().
		Str("appointment_id", ev.AppointmentID.String()).
		Str("record_id", rec.ID.String()).
		Msg("clinical record created")
	return nil
}
