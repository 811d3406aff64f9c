package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.Result, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, in appointment.RescheduleInput) (*appointment.Result, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, target appointment.AppointmentStatus, actor uuid.UUID) (*appointment.Result, error)
	CancelAppointment(ctx context.Context, id, actor uuid.UUID, reason string) (*appointment.Result, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListForClinicianDay(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]appointment.Appointment, error)
	AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date clock.Date, opts appointment.SlotOptions) ([]appointment.Slot, error)
	HasConflict(ctx context.Context, q appointment.ConflictQuery) (bool, *appointment.Appointment, error)
}

func createAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		date, err := clock.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
			return
		}

		res, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			PatientID:       uuid.MustParse(req.PatientID),
			ClinicianID:     uuid.MustParse(req.ClinicianID),
			DepartmentID:    optionalUUID(req.DepartmentID),
			Date:            date,
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			Type:            req.Type,
			Priority:        appointment.Priority(req.Priority),
			ChiefComplaint:  req.ChiefComplaint,
			Notes:           req.Notes,
			ScheduledBy:     &actor,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toMutationResponse(res))
	}
}

func listAppointmentsHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, err := uuid.Parse(r.URL.Query().Get("clinician_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_id", "clinician_id must be a valid UUID")
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		appts, err := svc.ListForClinicianDay(r.Context(), clinicianID, date)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeBody(w, r, &req) {
			return
		}

		in := appointment.RescheduleInput{
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
			Actor:           actor,
		}
		if req.Date != "" {
			date, err := clock.ParseDate(req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
				return
			}
			in.Date = &date
		}

		res, err := svc.RescheduleAppointment(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toMutationResponse(res))
	}
}

// transitionHandler serves the fixed-target endpoints (confirm, start,
// complete, no-show).
func transitionHandler(svc AppointmentService, log zerolog.Logger, target appointment.AppointmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		res, err := svc.AdvanceStatus(r.Context(), id, target, actor)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toMutationResponse(res))
	}
}

func updateStatusHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req StatusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var (
			res *appointment.Result
			err error
		)
		target := appointment.AppointmentStatus(req.Status)
		if target == appointment.StatusCancelled {
			res, err = svc.CancelAppointment(r.Context(), id, actor, req.Reason)
		} else {
			res, err = svc.AdvanceStatus(r.Context(), id, target, actor)
		}
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toMutationResponse(res))
	}
}

func cancelAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := svc.CancelAppointment(r.Context(), id, actor, req.Reason)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toMutationResponse(res))
	}
}

func availableSlotsHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		var opts appointment.SlotOptions
		q := r.URL.Query()
		if raw := q.Get("slot_minutes"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_slot_minutes", "slot_minutes must be a positive integer")
				return
			}
			opts.SlotMinutes = n
		}
		if start, end := q.Get("window_start"), q.Get("window_end"); start != "" || end != "" {
			ws, err1 := clock.ParseTimeOfDay(start)
			we, err2 := clock.ParseTimeOfDay(end)
			if err1 != nil || err2 != nil {
				writeError(w, http.StatusBadRequest, "invalid_window", "window_start and window_end must both be HH:MM")
				return
			}
			opts.WindowStart, opts.WindowEnd = ws, we
		}

		slots, err := svc.AvailableSlots(r.Context(), clinicianID, date, opts)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{ClinicianID: clinicianID, Date: date, Slots: slots})
	}
}

func conflictCheckHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		start, err := clock.ParseTimeOfDay(q.Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}
		duration, err := strconv.Atoi(q.Get("duration"))
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}

		hit, conflicting, err := svc.HasConflict(r.Context(), appointment.ConflictQuery{
			ClinicianID:     clinicianID,
			Date:            date,
			Start:           start,
			DurationMinutes: duration,
			Exclude:         optionalUUID(q.Get("exclude")),
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := ConflictResponse{HasConflict: hit}
		if conflicting != nil {
			c := toAppointmentResponse(conflicting)
			resp.Conflicting = &c
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
