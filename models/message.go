package models

// Realtime message types sent to clients
const (
	MessageEmergencyUpdate     = "emergency_update"
	MessageAmbulanceUpdate     = "ambulance_update"
	MessageHospitalUpdate      = "hospital_update"
	MessageAmbulanceAlarm      = "ambulance_alarm"
	MessageParamedicDispatched = "ambulance_dispatched_to_paramedic"
	MessageInitialData         = "initial_data"
	MessageTypeError           = "error"
	MessagePong                = "pong"
)

// Client message types
const (
	ClientPing           = "ping"
	ClientGetInitialData = "get_initial_data"
)

// Envelope is the wire shape of every server push
type Envelope struct {
	Type    string      `json:"type"`
	Event   string      `json:"event,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ClientMessage is the wire shape of client control messages
type ClientMessage struct {
	Type string `json:"type"`
}

// DispatcherSnapshot is the initial_data payload for dispatcher sessions
type DispatcherSnapshot struct {
	Emergencies []EmergencyCall `json:"emergencies"`
	Ambulances  []Ambulance     `json:"ambulances"`
	Hospitals   []Hospital      `json:"hospitals"`
}

// ParamedicSnapshot is the initial_data payload for paramedic sessions
type ParamedicSnapshot struct {
	ActiveCall *EmergencyCall `json:"active_call"`
	Ambulance  *Ambulance     `json:"ambulance"`
}

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
