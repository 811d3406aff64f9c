package labtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusReviewed   Status = "reviewed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses count toward a technician's workload.
var ActiveStatuses = []Status{StatusAssigned, StatusInProgress}

func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// HoldsTechnician reports whether a test in status s must reference a technician.
func (s Status) HoldsTechnician() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted, StatusReviewed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityRoutine Priority = "routine"
	PriorityUrgent  Priority = "urgent"
	PriorityStat    Priority = "stat"
)

func (p Priority) Valid() bool {
	return p == PriorityRoutine || p == PriorityUrgent || p == PriorityStat
}

type TestType string

const (
	TypeBlood        TestType = "blood"
	TypeUrine        TestType = "urine"
	TypeImaging      TestType = "imaging"
	TypePathology    TestType = "pathology"
	TypeMicrobiology TestType = "microbiology"
	TypeBiochemistry TestType = "biochemistry"
	TypeHematology   TestType = "hematology"
	TypeOther        TestType = "other"
)

func (t TestType) Valid() bool {
	switch t {
	case TypeBlood, TypeUrine, TypeImaging, TypePathology,
		TypeMicrobiology, TypeBiochemistry, TypeHematology, TypeOther:
		return true
	}
	return false
}

type ResultFlag string

const (
	FlagNormal       ResultFlag = "normal"
	FlagAbnormal     ResultFlag = "abnormal"
	FlagCritical     ResultFlag = "critical"
	FlagInconclusive ResultFlag = "inconclusive"
)

type ResultValue struct {
	Parameter   string     `json:"parameter"`
	Value       string     `json:"value"`
	Unit        string     `json:"unit,omitempty"`
	NormalRange string     `json:"normal_range,omitempty"`
	Flag        ResultFlag `json:"flag,omitempty"`
}

type Results struct {
	Values          []ResultValue `json:"values"`
	Interpretation  string        `json:"interpretation,omitempty"`
	Conclusion      string        `json:"conclusion,omitempty"`
	Recommendations string        `json:"recommendations,omitempty"`
}

type Review struct {
	ReviewedBy  uuid.UUID `json:"reviewed_by"`
	ReviewedAt  time.Time `json:"reviewed_at"`
	Comments    string    `json:"comments,omitempty"`
	ActionTaken string    `json:"action_taken,omitempty"`
}

type Cancellation struct {
	CancelledBy uuid.UUID `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason"`
}

type LabTest struct {
	ID                  uuid.UUID
	Code                string
	AppointmentID       uuid.UUID
	PatientID           uuid.UUID
	ClinicianID         uuid.UUID
	DepartmentID        uuid.UUID
	TechnicianID        *uuid.UUID
	TestName            string
	TestType            TestType
	Priority            Priority
	Status              Status
	ClinicalIndication  string
	SpecialInstructions string
	RequestedAt         time.Time
	AssignedAt          *time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	Results             *Results
	Review              *Review
	Cancellation        *Cancellation
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Workload is a technician's load as read at one moment. It is never cached.
type Workload struct {
	TechnicianID   uuid.UUID  `json:"technician_id"`
	Name           string     `json:"name"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	Active         int        `json:"current_workload"`
	TotalAssigned  int        `json:"total_tests"`
	CompletedToday int        `json:"completed_today"`
}

// Stats are the per-technician counters behind a Workload.
type Stats struct {
	Active         int
	TotalAssigned  int
	CompletedToday int
}

// FormatCode renders the human test code, e.g. LAB240600042.
func FormatCode(at time.Time, seq int64) string {
	return fmt.Sprintf("LAB%02d%02d%05d", at.Year()%100, int(at.Month()), seq)
}
