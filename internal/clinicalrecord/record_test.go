package clinicalrecord

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: map[uuid.UUID]Record{}}
}

func (m *memStore) Create(_ context.Context, r *Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.records[r.AppointmentID]; ok {
		return false, nil
	}
	m.records[r.AppointmentID] = *r
	return true, nil
}

func newHandler(store Store) *Handler {
	h := NewHandler(store, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func eventBody(t *testing.T, ev appointment.ClinicalRecordRequested) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestFromEvent_Defaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := appointment.ClinicalRecordRequested{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		ClinicianID:   uuid.New(),
		Notes:         "   ",
	}

	rec := FromEvent(ev, now)

	assert.Equal(t, RecordTypeConsultation, rec.RecordType)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, DefaultNotes, rec.Notes)
	assert.Equal(t, now, rec.RecordDate)
	assert.Nil(t, rec.CreatedBy)
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestHandle_CreatesOncePerAppointment(t *testing.T) {
	store := newMemStore()
	h := newHandler(store)

	completedAt := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	ev := appointment.ClinicalRecordRequested{
		AppointmentID:  uuid.New(),
		PatientID:      uuid.New(),
		ClinicianID:    uuid.New(),
		ChiefComplaint: "headache",
		Notes:          "follow up in 2 weeks",
		CompletedBy:    uuid.New(),
		CompletedAt:    completedAt,
	}
	body := eventBody(t, ev)

	require.NoError(t, h.Handle(context.Background(), appointment.EventClinicalRecordRequested, body))
	require.NoError(t, h.Handle(context.Background(), appointment.EventClinicalRecordRequested, body))

	require.Len(t, store.records, 1)
	rec := store.records[ev.AppointmentID]
	assert.Equal(t, "follow up in 2 weeks", rec.Notes)
	assert.Equal(t, "headache", rec.ChiefComplaint)
	assert.Equal(t, completedAt, rec.RecordDate)
	require.NotNil(t, rec.CreatedBy)
	assert.Equal(t, ev.CompletedBy, *rec.CreatedBy)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	store := newMemStore()
	h := newHandler(store)

	err := h.Handle(context.Background(), appointment.EventAppointmentScheduled, []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, store.records)
}

func TestHandle_Malformed(t *testing.T) {
	h := newHandler(newMemStore())

	err := h.Handle(context.Background(), appointment.EventClinicalRecordRequested, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = h.Handle(context.Background(), appointment.EventClinicalRecordRequested, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestHandle_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	h := newHandler(store)

	body := eventBody(t, appointment.ClinicalRecordRequested{AppointmentID: uuid.New()})
	err := h.Handle(context.Background(), appointment.EventClinicalRecordRequested, body)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedEvent)
}
