package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/labtest"
)

type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id" validate:"required,uuid"`
	ClinicianID     string `json:"clinician_id" validate:"required,uuid"`
	DepartmentID    string `json:"department_id" validate:"omitempty,uuid"`
	Date            string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"appointment_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=1"`
	Type            string `json:"type" validate:"omitempty,max=50"`
	Priority        string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ChiefComplaint  string `json:"chief_complaint" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type RescheduleRequest struct {
	Date            string `json:"appointment_date" validate:"omitempty,datetime=2006-01-02"`
	Time            string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=1"`
	Reason          string `json:"reason" validate:"max=500"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled confirmed in-progress completed cancelled no-show"`
	Reason string `json:"reason" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AppointmentResponse struct {
	ID              uuid.UUID                 `json:"id"`
	PatientID       uuid.UUID                 `json:"patient_id"`
	ClinicianID     uuid.UUID                 `json:"clinician_id"`
	DepartmentID    *uuid.UUID                `json:"department_id,omitempty"`
	Date            clock.Date                `json:"appointment_date"`
	Time            clock.TimeOfDay           `json:"appointment_time"`
	EndTime         clock.TimeOfDay           `json:"end_time"`
	DurationMinutes int                       `json:"duration_minutes"`
	Status          string                    `json:"status"`
	Type            string                    `json:"type"`
	Priority        string                    `json:"priority"`
	ChiefComplaint  string                    `json:"chief_complaint,omitempty"`
	Notes           string                    `json:"notes,omitempty"`
	ScheduledBy     *uuid.UUID                `json:"scheduled_by,omitempty"`
	Rescheduling    *appointment.Rescheduling `json:"rescheduling,omitempty"`
	Cancellation    *appointment.Cancellation `json:"cancellation,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// MutationResponse is returned by every write on an appointment. Events lists
// the side effects the change produced.
type MutationResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Events      []string            `json:"events"`
}

type ConflictResponse struct {
	HasConflict bool                 `json:"has_conflict"`
	Conflicting *AppointmentResponse `json:"conflicting_appointment,omitempty"`
}

type SlotsResponse struct {
	ClinicianID uuid.UUID          `json:"clinician_id"`
	Date        clock.Date         `json:"date"`
	Slots       []appointment.Slot `json:"slots"`
}

type LabTestRequest struct {
	TestName            string `json:"test_name" validate:"required,max=200"`
	TestType            string `json:"test_type" validate:"required,oneof=blood urine imaging pathology microbiology biochemistry hematology other"`
	Priority            string `json:"priority" validate:"omitempty,oneof=routine urgent stat"`
	TechnicianID        string `json:"technician_id" validate:"omitempty,uuid"`
	ClinicalIndication  string `json:"clinical_indication" validate:"max=1000"`
	SpecialInstructions string `json:"special_instructions" validate:"max=1000"`
}

type AssignRequest struct {
	TechnicianID string `json:"technician_id" validate:"required,uuid"`
}

type CompleteLabTestRequest struct {
	Values          []ResultValueRequest `json:"values" validate:"dive"`
	Interpretation  string               `json:"interpretation" validate:"max=2000"`
	Conclusion      string               `json:"conclusion" validate:"max=2000"`
	Recommendations string               `json:"recommendations" validate:"max=2000"`
}

type ResultValueRequest struct {
	Parameter   string `json:"parameter" validate:"required"`
	Value       string `json:"value" validate:"required"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normal_range"`
	Flag        string `json:"flag" validate:"omitempty,oneof=normal abnormal critical inconclusive"`
}

type ReviewRequest struct {
	Comments    string `json:"comments" validate:"max=2000"`
	ActionTaken string `json:"action_taken" validate:"max=2000"`
}

type LabTestResponse struct {
	ID                  uuid.UUID             `json:"id"`
	Code                string                `json:"test_code"`
	AppointmentID       uuid.UUID             `json:"appointment_id"`
	PatientID           uuid.UUID             `json:"patient_id"`
	ClinicianID         uuid.UUID             `json:"clinician_id"`
	DepartmentID        uuid.UUID             `json:"department_id"`
	TechnicianID        *uuid.UUID            `json:"technician_id,omitempty"`
	TestName            string                `json:"test_name"`
	TestType            string                `json:"test_type"`
	Priority            string                `json:"priority"`
	Status              string                `json:"status"`
	ClinicalIndication  string                `json:"clinical_indication,omitempty"`
	SpecialInstructions string                `json:"special_instructions,omitempty"`
	RequestedAt         time.Time             `json:"requested_at"`
	AssignedAt          *time.Time            `json:"assigned_at,omitempty"`
	StartedAt           *time.Time            `json:"started_at,omitempty"`
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	Results             *labtest.Results      `json:"results,omitempty"`
	Review              *labtest.Review       `json:"review,omitempty"`
	Cancellation        *labtest.Cancellation `json:"cancellation,omitempty"`
}

type LabRequestResponse struct {
	LabTest  LabTestResponse `json:"lab_test"`
	Assigned bool            `json:"assigned"`
	Message  string          `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ClinicianID:     a.ClinicianID,
		DepartmentID:    a.DepartmentID,
		Date:            a.Date,
		Time:            a.StartTime,
		EndTime:         a.EndTime(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Type:            a.Type,
		Priority:        string(a.Priority),
		ChiefComplaint:  a.ChiefComplaint,
		Notes:           a.Notes,
		ScheduledBy:     a.ScheduledBy,
		Rescheduling:    a.Rescheduling,
		Cancellation:    a.Cancellation,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toMutationResponse(res *appointment.Result) MutationResponse {
	events := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		events = append(events, ev.Type)
	}
	return MutationResponse{
		Appointment: toAppointmentResponse(res.Appointment),
		Events:      events,
	}
}

func toLabTestResponse(lt *labtest.LabTest) LabTestResponse {
	return LabTestResponse{
		ID:                  lt.ID,
		Code:                lt.Code,
		AppointmentID:       lt.AppointmentID,
		PatientID:           lt.PatientID,
		ClinicianID:         lt.ClinicianID,
		DepartmentID:        lt.DepartmentID,
		TechnicianID:        lt.TechnicianID,
		TestName:            lt.TestName,
		TestType:            string(lt.TestType),
		Priority:            string(lt.Priority),
		Status:              string(lt.Status),
		ClinicalIndication:  lt.ClinicalIndication,
		SpecialInstructions: lt.SpecialInstructions,
		RequestedAt:         lt.RequestedAt,
		AssignedAt:          lt.AssignedAt,
		StartedAt:           lt.StartedAt,
		CompletedAt:         lt.CompletedAt,
		Results:             lt.Results,
		Review:              lt.Review,
		Cancellation:        lt.Cancellation,
	}
}
