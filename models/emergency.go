package models

import (
	"fmt"
	"time"
)

// EmergencyStatus is the lifecycle state of an emergency call
type EmergencyStatus string

// Emergency call states, in the only order a call may move through them
const (
	EmergencyReceived     EmergencyStatus = "RECEIVED"
	EmergencyDispatched   EmergencyStatus = "DISPATCHED"
	EmergencyEnRoute      EmergencyStatus = "EN_ROUTE"
	EmergencyOnScene      EmergencyStatus = "ON_SCENE"
	EmergencyTransporting EmergencyStatus = "TRANSPORTING"
	EmergencyAtHospital   EmergencyStatus = "AT_HOSPITAL"
	EmergencyClosed       EmergencyStatus = "CLOSED"
)

type transition struct {
	next EmergencyStatus
	// dispatchOnly edges are taken by a dispatch alone, which assigns the
	// ambulance in the same commit
	dispatchOnly bool
}

// emergencyTransitions maps every non-terminal state to its single successor.
// Every code path that moves a call forward goes through ValidateTransition.
var emergencyTransitions = map[EmergencyStatus]transition{
	EmergencyReceived:     {next: EmergencyDispatched, dispatchOnly: true},
	EmergencyDispatched:   {next: EmergencyEnRoute},
	EmergencyEnRoute:      {next: EmergencyOnScene},
	EmergencyOnScene:      {next: EmergencyTransporting},
	EmergencyTransporting: {next: EmergencyAtHospital},
	EmergencyAtHospital:   {next: EmergencyClosed},
}

var (
	// ActiveEmergencyStatuses are the states shown on the dispatcher board
	ActiveEmergencyStatuses = []EmergencyStatus{
		EmergencyReceived, EmergencyDispatched, EmergencyEnRoute, EmergencyOnScene, EmergencyTransporting,
	}
	// InProgressEmergencyStatuses are the states where a crew is working the call
	InProgressEmergencyStatuses = []EmergencyStatus{
		EmergencyDispatched, EmergencyEnRoute, EmergencyOnScene, EmergencyTransporting,
	}
	// CompletedEmergencyStatuses are reported as complete
	CompletedEmergencyStatuses = []EmergencyStatus{EmergencyAtHospital, EmergencyClosed}
)

// Valid reports whether s is a known emergency status
func (s EmergencyStatus) Valid() bool {
	if s == EmergencyClosed {
		return true
	}
	_, ok := emergencyTransitions[s]
	return ok
}

// Next returns the state that follows s. Terminal states have no successor.
func (s EmergencyStatus) Next() (EmergencyStatus, bool) {
	t, ok := emergencyTransitions[s]
	return t.next, ok
}

// IsActive reports whether the call still needs dispatcher attention
func (s EmergencyStatus) IsActive() bool {
	return containsStatus(ActiveEmergencyStatuses, s)
}

// IsTerminal reports whether the call can no longer change state
func (s EmergencyStatus) IsTerminal() bool {
	return s == EmergencyClosed
}

// ValidateTransition returns ErrInvalidTransition unless to is the immediate
// successor of from.
func ValidateTransition(from, to EmergencyStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	next, ok := from.Next()
	if !ok {
		return fmt.Errorf("%w: call is %s and cannot change status", ErrInvalidTransition, from)
	}
	if next != to {
		return fmt.Errorf("%w: %s -> %s, expected %s", ErrInvalidTransition, from, to, next)
	}
	return nil
}

// ValidateStatusUpdate checks a transition requested through a status update.
// On top of ValidateTransition it refuses the edges only a dispatch may take,
// so a call never leaves RECEIVED without an ambulance.
func ValidateStatusUpdate(from, to EmergencyStatus) error {
	if err := ValidateTransition(from, to); err != nil {
		return err
	}
	if emergencyTransitions[from].dispatchOnly {
		return fmt.Errorf("%w: %s -> %s happens only through a dispatch", ErrInvalidTransition, from, to)
	}
	return nil
}

func containsStatus(list []EmergencyStatus, s EmergencyStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Emergency types accepted at intake
var EmergencyTypes = []string{"MEDICAL", "CARDIAC", "RESPIRATORY", "TRAUMA", "STROKE", "OBSTETRIC", "OTHER"}

// Emergency priorities accepted at intake
var EmergencyPriorities = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

// EmergencyCall holds the structure for the emergencies collection in mongo
type EmergencyCall struct {
	ID      string           `json:"_id" bson:"_id"`
	Details EmergencyDetails `json:"emergency" bson:"emergency"`
	Version int32            `json:"__v" bson:"__v"`
}

// EmergencyDetails holds the structure for the inner emergency structure as
// defined in the emergencies collection in mongo. Empty reference ids mean
// the reference is unset.
type EmergencyDetails struct {
	CallCode            string          `json:"callCode" bson:"callCode"`
	Status              EmergencyStatus `json:"status" bson:"status"`
	EmergencyType       string          `json:"emergencyType" bson:"emergencyType"`
	Priority            string          `json:"priority" bson:"priority"`
	Description         string          `json:"description" bson:"description"`
	CallerName          string          `json:"callerName" bson:"callerName"`
	CallerPhone         string          `json:"callerPhone" bson:"callerPhone"`
	PatientName         string          `json:"patientName" bson:"patientName"`
	PatientAge          int             `json:"patientAge" bson:"patientAge"`
	PatientCondition    string          `json:"patientCondition" bson:"patientCondition"`
	LocationAddress     string          `json:"locationAddress" bson:"locationAddress"`
	Location            GeoPoint        `json:"location" bson:"location"`
	AssignedAmbulanceID string          `json:"assignedAmbulanceID" bson:"assignedAmbulanceID"`
	AssignedParamedicID string          `json:"assignedParamedicID" bson:"assignedParamedicID"`
	DispatcherID        string          `json:"dispatcherID" bson:"dispatcherID"`
	HospitalDestination string          `json:"hospitalDestination" bson:"hospitalDestination"`
	ReceivedAt          time.Time       `json:"receivedAt" bson:"receivedAt"`
	DispatchedAt        *time.Time      `json:"dispatchedAt" bson:"dispatchedAt"`
	UpdatedAt           time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// EmergencyIntake is the payload accepted when a new call enters the system
type EmergencyIntake struct {
	CallerName       string  `json:"callerName"`
	CallerPhone      string  `json:"callerPhone"`
	PatientName      string  `json:"patientName"`
	PatientAge       int     `json:"patientAge"`
	PatientCondition string  `json:"patientCondition"`
	EmergencyType    string  `json:"emergencyType"`
	Priority         string  `json:"priority"`
	Description      string  `json:"description"`
	LocationAddress  string  `json:"locationAddress"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// PreparationTask is one item of the checklist returned on acknowledgement
type PreparationTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// DispatchAcknowledgement is returned to a paramedic acknowledging a dispatch
type DispatchAcknowledgement struct {
	Status              string            `json:"status"`
	EmergencyID         string            `json:"emergencyID"`
	CallCode            string            `json:"callCode"`
	EmergencyType       string            `json:"emergencyType"`
	Priority            string            `json:"priority"`
	Location            string            `json:"location"`
	PatientName         string            `json:"patientName"`
	PatientAge          int               `json:"patientAge"`
	PatientCondition    string            `json:"patientCondition"`
	HospitalDestination string            `json:"hospitalDestination"`
	DispatcherID        string            `json:"dispatcherID"`
	DispatcherName      string            `json:"dispatcherName"`
	DispatcherPhone     string            `json:"dispatcherPhone"`
	PreparationTasks    []PreparationTask `json:"preparationTasks"`
}
