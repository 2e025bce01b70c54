package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// List scopes accepted by ListEmergencies. ScopeActive holds calls a crew is
// working; ScopeBoard adds the RECEIVED calls still waiting for a unit.
const (
	ScopeActive    = "active"
	ScopeBoard     = "board"
	ScopePending   = "pending"
	ScopeCompleted = "completed"
	ScopeAll       = "all"
)

const (
	defaultEmergencyType = "MEDICAL"
	defaultPriority      = "MEDIUM"
)

func oneOf(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// callCode renders EMG-YYYYMMDD-XXXXXX for a new call
func (c *Coordinator) callCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("EMG-%s-%s", c.now().UTC().Format("20060102"), suffix)
}

// CreateEmergency records a new call in RECEIVED and raises the dispatcher
// alarm. Intake is public, no identity is required.
func (c *Coordinator) CreateEmergency(ctx context.Context, intake models.EmergencyIntake) (*models.EmergencyCall, error) {
	if err := models.ValidateCoordinates(intake.Latitude, intake.Longitude); err != nil {
		return nil, err
	}
	if strings.TrimSpace(intake.LocationAddress) == "" {
		return nil, fmt.Errorf("%w: locationAddress is required", models.ErrInvalidInput)
	}
	emergencyType := strings.ToUpper(strings.TrimSpace(intake.EmergencyType))
	if emergencyType == "" {
		emergencyType = defaultEmergencyType
	}
	if !oneOf(models.EmergencyTypes, emergencyType) {
		return nil, fmt.Errorf("%w: unknown emergency type %q", models.ErrInvalidInput, intake.EmergencyType)
	}
	priority := strings.ToUpper(strings.TrimSpace(intake.Priority))
	if priority == "" {
		priority = defaultPriority
	}
	if !oneOf(models.EmergencyPriorities, priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", models.ErrInvalidInput, intake.Priority)
	}
	if intake.PatientAge < 0 {
		return nil, fmt.Errorf("%w: patientAge must not be negative", models.ErrInvalidInput)
	}

	now := c.now().UTC()
	call := &models.EmergencyCall{Details: models.EmergencyDetails{
		CallCode:         c.callCode(),
		Status:           models.EmergencyReceived,
		EmergencyType:    emergencyType,
		Priority:         priority,
		Description:      intake.Description,
		CallerName:       intake.CallerName,
		CallerPhone:      intake.CallerPhone,
		PatientName:      intake.PatientName,
		PatientAge:       intake.PatientAge,
		PatientCondition: intake.PatientCondition,
		LocationAddress:  intake.LocationAddress,
		Location: models.GeoPoint{
			Latitude:  models.RoundCoordinate(intake.Latitude),
			Longitude: models.RoundCoordinate(intake.Longitude),
		},
		ReceivedAt: now,
		UpdatedAt:  now,
	}}
	if err := c.store.CreateEmergency(ctx, call); err != nil {
		return nil, err
	}

	zap.S().Infow("emergency received", "emergencyId", call.ID, "callCode", call.Details.CallCode, "priority", priority)
	c.emit(ctx, models.NewEmergencyEvent(models.EventNewEmergency, *call), models.NewAlarmEvent(*call))
	return call, nil
}

var preparationTasks = []models.PreparationTask{
	{ID: "bed", Title: "Bed Allocation", Description: "Prepare suitable bed based on patient condition"},
	{ID: "ward", Title: "Ward Assignment", Description: "Assign to appropriate ward for %s"},
	{ID: "equipment", Title: "Equipment Setup", Description: "Ready monitoring and diagnostic equipment"},
	{ID: "staff", Title: "Staff Notification", Description: "Alert ward staff and notify physicians"},
	{ID: "medications", Title: "Emergency Medications", Description: "Prepare relevant medications based on emergency type"},
}

// AcknowledgeDispatch lets the assigned paramedic confirm a dispatch and
// returns what they need to prepare.
func (c *Coordinator) AcknowledgeDispatch(ctx context.Context, callID string, requester models.Identity) (*models.DispatchAcknowledgement, error) {
	if !requester.HasRole(models.RoleParamedic) {
		return nil, fmt.Errorf("%w: only paramedics can acknowledge dispatch", models.ErrForbidden)
	}
	call, err := c.store.GetEmergency(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.Details.AssignedParamedicID != requester.UserID {
		return nil, fmt.Errorf("%w: paramedic is not assigned to emergency %s", models.ErrForbidden, call.Details.CallCode)
	}

	ack := &models.DispatchAcknowledgement{
		Status:              "acknowledged",
		EmergencyID:         call.ID,
		CallCode:            call.Details.CallCode,
		EmergencyType:       call.Details.EmergencyType,
		Priority:            call.Details.Priority,
		Location:            call.Details.LocationAddress,
		PatientName:         call.Details.PatientName,
		PatientAge:          call.Details.PatientAge,
		PatientCondition:    call.Details.PatientCondition,
		HospitalDestination: call.Details.HospitalDestination,
		DispatcherID:        call.Details.DispatcherID,
	}
	if call.Details.DispatcherID != "" {
		dispatcher, err := c.store.GetUser(ctx, call.Details.DispatcherID)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			ack.DispatcherName = dispatcher.Details.Name
			ack.DispatcherPhone = dispatcher.Details.PhoneNumber
		}
	}
	for _, t := range preparationTasks {
		if t.ID == "ward" {
			t.Description = fmt.Sprintf(t.Description, call.Details.EmergencyType)
		}
		ack.PreparationTasks = append(ack.PreparationTasks, t)
	}

	zap.S().Infow("dispatch acknowledged", "emergencyId", call.ID, "paramedicId", requester.UserID)
	return ack, nil
}

// ActiveCallFor returns the newest active call assigned to a paramedic, or
// nil when there is none.
func (c *Coordinator) ActiveCallFor(ctx context.Context, paramedicID string) (*models.EmergencyCall, error) {
	calls, err := c.store.ListEmergencies(ctx, databases.EmergencyFilter{
		Statuses:    models.ActiveEmergencyStatuses,
		ParamedicID: paramedicID,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// ListEmergencies returns the calls in scope, newest first
func (c *Coordinator) ListEmergencies(ctx context.Context, scope string) ([]models.EmergencyCall, error) {
	var filter databases.EmergencyFilter
	switch scope {
	case ScopeActive:
		filter.Statuses = models.InProgressEmergencyStatuses
	case ScopeBoard:
		filter.Statuses = models.ActiveEmergencyStatuses
	case ScopePending:
		filter.Statuses = []models.EmergencyStatus{models.EmergencyReceived}
	case ScopeCompleted:
		filter.Statuses = models.CompletedEmergencyStatuses
	case ScopeAll, "":
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", models.ErrInvalidInput, scope)
	}
	return c.store.ListEmergencies(ctx, filter)
}

// DispatcherSnapshot is the board state sent to a dispatcher on connect
func (c *Coordinator) DispatcherSnapshot(ctx context.Context) (*models.DispatcherSnapshot, error) {
	calls, err := c.ListEmergencies(ctx, ScopeBoard)
	if err != nil {
		return nil, err
	}
	ambulances, err := c.store.ListAmbulances(ctx)
	if err != nil {
		return nil, err
	}
	hospitals, err := c.store.ListHospitals(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DispatcherSnapshot{Emergencies: calls, Ambulances: ambulances, Hospitals: hospitals}, nil
}

// ParamedicSnapshot is the state sent to a paramedic on connect: their
// active call and the ambulance they crew, either of which may be nil.
func (c *Coordinator) ParamedicSnapshot(ctx context.Context, paramedicID string) (*models.ParamedicSnapshot, error) {
	snap := &models.ParamedicSnapshot{}
	call, err := c.ActiveCallFor(ctx, paramedicID)
	if err != nil {
		return nil, err
	}
	snap.ActiveCall = call

	if call != nil && call.Details.AssignedAmbulanceID != "" {
		amb, err := c.store.GetAmbulance(ctx, call.Details.AssignedAmbulanceID)
		if err == nil {
			snap.Ambulance = amb
			return snap, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	ambulances, err := c.store.ListAmbulances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ambulances {
		if ambulances[i].Details.AssignedParamedicID == paramedicID {
			snap.Ambulance = &ambulances[i]
			break
		}
	}
	return snap, nil
}
