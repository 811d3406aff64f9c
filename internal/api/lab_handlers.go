package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/labtest"
)

type LabService interface {
	Request(ctx context.Context, in labtest.RequestInput) (*labtest.Outcome, error)
	Assign(ctx context.Context, id, technicianID uuid.UUID) (*labtest.LabTest, error)
	AutoAssign(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error)
	Start(ctx context.Context, id, actor uuid.UUID) (*labtest.LabTest, error)
	Complete(ctx context.Context, id, actor uuid.UUID, results labtest.Results) (*labtest.LabTest, error)
	Review(ctx context.Context, id, actor uuid.UUID, comments, actionTaken string) (*labtest.LabTest, error)
	Cancel(ctx context.Context, id, actor uuid.UUID, reason string) (*labtest.LabTest, error)
	Get(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]labtest.LabTest, error)
	Workload(ctx context.Context, departmentID *uuid.UUID) ([]labtest.Workload, error)
}

func requestLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req LabTestRequest
		if !decodeBody(w, r, &req) {
			return
		}

		out, err := svc.Request(r.Context(), labtest.RequestInput{
			AppointmentID:       appointmentID,
			OrderedBy:           actor,
			TechnicianID:        optionalUUID(req.TechnicianID),
			TestName:            req.TestName,
			TestType:            labtest.TestType(req.TestType),
			Priority:            labtest.Priority(req.Priority),
			ClinicalIndication:  req.ClinicalIndication,
			SpecialInstructions: req.SpecialInstructions,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, LabRequestResponse{
			LabTest:  toLabTestResponse(out.LabTest),
			Assigned: out.Assigned,
			Message:  out.Message,
		})
	}
}

func listLabTestsHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		tests, err := svc.ListByAppointment(r.Context(), appointmentID)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]LabTestResponse, 0, len(tests))
		for i := range tests {
			resp = append(resp, toLabTestResponse(&tests[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		lt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toLabTestResponse(lt))
	}
}

// labActionHandler wraps the endpoints that act on one test and return it.
func labActionHandler(log zerolog.Logger, act func(r *http.Request, id, actor uuid.UUID) (*labtest.LabTest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		lt, err := act(r, id, actor)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toLabTestResponse(lt))
	}
}

func assignLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignRequest
		if !decodeBody(w, r, &req) {
			return
		}
		labActionHandler(log, func(r *http.Request, id, _ uuid.UUID) (*labtest.LabTest, error) {
			return svc.Assign(r.Context(), id, uuid.MustParse(req.TechnicianID))
		})(w, r)
	}
}

func autoAssignLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return labActionHandler(log, func(r *http.Request, id, _ uuid.UUID) (*labtest.LabTest, error) {
		return svc.AutoAssign(r.Context(), id)
	})
}

func startLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return labActionHandler(log, func(r *http.Request, id, actor uuid.UUID) (*labtest.LabTest, error) {
		return svc.Start(r.Context(), id, actor)
	})
}

func completeLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteLabTestRequest
		if !decodeBody(w, r, &req) {
			return
		}

		results := labtest.Results{
			Interpretation:  req.Interpretation,
			Conclusion:      req.Conclusion,
			Recommendations: req.Recommendations,
		}
		for _, v := range req.Values {
			results.Values = append(results.Values, labtest.ResultValue{
				Parameter:   v.Parameter,
				Value:       v.Value,
				Unit:        v.Unit,
				NormalRange: v.NormalRange,
				Flag:        labtest.ResultFlag(v.Flag),
			})
		}

		labActionHandler(log, func(r *http.Request, id, actor uuid.UUID) (*labtest.LabTest, error) {
			return svc.Complete(r.Context(), id, actor, results)
		})(w, r)
	}
}

func reviewLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if !decodeBody(w, r, &req) {
			return
		}
		labActionHandler(log, func(r *http.Request, id, actor uuid.UUID) (*labtest.LabTest, error) {
			return svc.Review(r.Context(), id, actor, req.Comments, req.ActionTaken)
		})(w, r)
	}
}

func cancelLabTestHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		labActionHandler(log, func(r *http.Request, id, actor uuid.UUID) (*labtest.LabTest, error) {
			return svc.Cancel(r.Context(), id, actor, req.Reason)
		})(w, r)
	}
}

func workloadHandler(svc LabService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dept *uuid.UUID
		if raw := r.URL.Query().Get("department_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_department_id", "department_id must be a valid UUID")
				return
			}
			dept = &id
		}

		loads, err := svc.Workload(r.Context(), dept)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		if loads == nil {
			loads = []labtest.Workload{}
		}
		writeJSON(w, http.StatusOK, loads)
	}
}
