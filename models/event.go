package models

// EventKind names a domain event
type EventKind string

// Domain events
const (
	EventNewEmergency        EventKind = "NEW_EMERGENCY"
	EventStatusUpdate        EventKind = "STATUS_UPDATE"
	EventUnitDispatched      EventKind = "UNIT_DISPATCHED"
	EventLocationUpdate      EventKind = "LOCATION_UPDATE"
	EventCapacityUpdate      EventKind = "CAPACITY_UPDATE"
	EventAmbulanceAlarm      EventKind = "AMBULANCE_ALARM"
	EventAssignmentCompleted EventKind = "ASSIGNMENT_COMPLETED"
	EventAmbulanceCreated    EventKind = "AMBULANCE_CREATED"
	EventAmbulanceDeleted    EventKind = "AMBULANCE_DELETED"
	EventHospitalCreated     EventKind = "HOSPITAL_CREATED"
	EventHospitalUpdated     EventKind = "HOSPITAL_UPDATED"
	EventHospitalDeleted     EventKind = "HOSPITAL_DELETED"
)

// Event is a domain event handed to the notification router. ParamedicID,
// when set, adds that paramedic's group to the targets.
type Event struct {
	Kind        EventKind
	Type        string
	Data        interface{}
	ParamedicID string
}

// DispatcherOnly reports whether the event must never reach a paramedic group
func (e Event) DispatcherOnly() bool {
	return e.Kind == EventAmbulanceAlarm
}

// NewEmergencyEvent builds an emergency_update event for a call. The call's
// assigned paramedic, if any, is targeted as well.
func NewEmergencyEvent(kind EventKind, call EmergencyCall) Event {
	return Event{Kind: kind, Type: MessageEmergencyUpdate, Data: call, ParamedicID: call.Details.AssignedParamedicID}
}

// NewAlarmEvent builds the dispatcher-only alarm raised for a brand-new call
func NewAlarmEvent(call EmergencyCall) Event {
	return Event{Kind: EventAmbulanceAlarm, Type: MessageAmbulanceAlarm, Data: call}
}

// NewAmbulanceEvent builds an ambulance_update event for the dispatcher board
func NewAmbulanceEvent(kind EventKind, ambulance Ambulance) Event {
	return Event{Kind: kind, Type: MessageAmbulanceUpdate, Data: ambulance}
}

// NewParamedicDispatchEvent builds the dispatch notice for the assigned paramedic
func NewParamedicDispatchEvent(call EmergencyCall) Event {
	return Event{Kind: EventUnitDispatched, Type: MessageParamedicDispatched, Data: call, ParamedicID: call.Details.AssignedParamedicID}
}

// NewHospitalEvent builds a hospital_update event
func NewHospitalEvent(kind EventKind, hospital Hospital) Event {
	return Event{Kind: kind, Type: MessageHospitalUpdate, Data: hospital}
}
