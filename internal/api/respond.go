package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
	"github.com/hackgods/clinic-scheduling/internal/labtest"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeBody parses and validates a JSON body. An empty body decodes to the
// zero value so endpoints with all-optional fields accept no body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func actorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing_actor", ActorHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor", ActorHeader+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func queryDate(w http.ResponseWriter, r *http.Request) (clock.Date, bool) {
	d, err := clock.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return clock.Date{}, false
	}
	return d, true
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as a 500 without internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var (
		conflict   *appointment.SchedulingConflictError
		transition *domainerr.InvalidTransitionError
	)

	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "scheduling_conflict", err.Error())
	case errors.Is(err, appointment.ErrSchedulingConflict):
		writeError(w, http.StatusConflict, "scheduling_conflict", err.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, domainerr.ErrConflictOnWrite):
		writeError(w, http.StatusConflict, "conflict_on_write", "the record changed concurrently, please retry")
	case errors.Is(err, labtest.ErrNoAssigneeAvailable):
		writeError(w, http.StatusConflict, "no_assignee_available", err.Error())
	case errors.Is(err, domainerr.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "not_permitted", err.Error())
	case errors.Is(err, domainerr.ErrResourceNotEligible),
		errors.Is(err, labtest.ErrNoDepartment):
		writeError(w, http.StatusUnprocessableEntity, "resource_not_eligible", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, labtest.ErrLabTestNotFound):
		writeError(w, http.StatusNotFound, "lab_test_not_found", err.Error())
	case errors.Is(err, resource.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, "resource_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidDuration),
		errors.Is(err, appointment.ErrInvalidTime),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrInvalidPriority),
		errors.Is(err, appointment.ErrInvalidSlotWindow),
		errors.Is(err, labtest.ErrInvalidLabTest),
		errors.Is(err, clock.ErrInvalidDate),
		errors.Is(err, clock.ErrInvalidTimeOfDay):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
