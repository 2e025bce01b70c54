package models

import (
	"fmt"
	"math"
	"time"
)

// AmbulanceStatus is the operational state of a unit
type AmbulanceStatus string

// Ambulance states
const (
	AmbulanceAvailable    AmbulanceStatus = "AVAILABLE"
	AmbulanceEnRoute      AmbulanceStatus = "EN_ROUTE"
	AmbulanceOnScene      AmbulanceStatus = "ON_SCENE"
	AmbulanceTransporting AmbulanceStatus = "TRANSPORTING"
	AmbulanceMaintenance  AmbulanceStatus = "MAINTENANCE"
	AmbulanceOutOfService AmbulanceStatus = "OUT_OF_SERVICE"
)

// AmbulanceStatuses lists every ambulance state
var AmbulanceStatuses = []AmbulanceStatus{
	AmbulanceAvailable, AmbulanceEnRoute, AmbulanceOnScene,
	AmbulanceTransporting, AmbulanceMaintenance, AmbulanceOutOfService,
}

// Valid reports whether s is a known ambulance status
func (s AmbulanceStatus) Valid() bool {
	for _, v := range AmbulanceStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsBusy reports whether the unit is working a call. A busy unit always has a
// current emergency and an idle one never does.
func (s AmbulanceStatus) IsBusy() bool {
	return s == AmbulanceEnRoute || s == AmbulanceOnScene || s == AmbulanceTransporting
}

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// ValidateCoordinates checks latitude and longitude ranges
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidInput)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidInput)
	}
	return nil
}

// RoundCoordinate rounds a coordinate to six decimal places
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Ambulance holds the structure for the ambulances collection in mongo
type Ambulance struct {
	ID      string           `json:"_id" bson:"_id"`
	Details AmbulanceDetails `json:"ambulance" bson:"ambulance"`
	Version int32            `json:"__v" bson:"__v"`
}

// AmbulanceDetails holds the structure for the inner ambulance structure as
// defined in the ambulances collection in mongo. AssignedParamedicID and
// CurrentEmergencyID are weak references; empty means unset.
type AmbulanceDetails struct {
	UnitNumber          string          `json:"unitNumber" bson:"unitNumber"`
	UnitType            string          `json:"unitType" bson:"unitType"`
	Status              AmbulanceStatus `json:"status" bson:"status"`
	Location            *GeoPoint       `json:"location" bson:"location"`
	LastLocationUpdate  *time.Time      `json:"lastLocationUpdate" bson:"lastLocationUpdate"`
	AssignedParamedicID string          `json:"assignedParamedicID" bson:"assignedParamedicID"`
	CurrentEmergencyID  string          `json:"currentEmergencyID" bson:"currentEmergencyID"`
	EquipmentList       string          `json:"equipmentList" bson:"equipmentList"`
	MaxPatients         int             `json:"maxPatients" bson:"maxPatients"`
	CreatedAt           time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// CheckInvariant reports a violation of the busy/current-emergency pairing
func (a Ambulance) CheckInvariant() error {
	busy := a.Details.Status.IsBusy()
	hasCall := a.Details.CurrentEmergencyID != ""
	if busy != hasCall {
		return fmt.Errorf("ambulance %s is %s with current emergency %q", a.Details.UnitNumber, a.Details.Status, a.Details.CurrentEmergencyID)
	}
	return nil
}

// DispatchRequest is the input of a dispatch. ParamedicID and HospitalID are optional.
type DispatchRequest struct {
	EmergencyID string `json:"emergencyCallID"`
	AmbulanceID string `json:"ambulanceID"`
	ParamedicID string `json:"paramedicID"`
	HospitalID  string `json:"hospitalID"`
}

// DispatchResult is returned after a committed dispatch
type DispatchResult struct {
	Message   string        `json:"message"`
	Emergency EmergencyCall `json:"emergencyCall"`
	Ambulance Ambulance     `json:"ambulance"`
}

// LocationUpdate is the body of an ambulance location update
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// AmbulanceInput is the body of an ambulance registration. Zero values take
// the defaults: BASIC unit, one patient, AVAILABLE.
type AmbulanceInput struct {
	UnitNumber          string          `json:"unitNumber"`
	UnitType            string          `json:"unitType"`
	Status              AmbulanceStatus `json:"status"`
	EquipmentList       string          `json:"equipmentList"`
	MaxPatients         int             `json:"maxPatients"`
	AssignedParamedicID string          `json:"assignedParamedicID"`
	Latitude            *float64        `json:"latitude"`
	Longitude           *float64        `json:"longitude"`
}

// Unit types
const (
	UnitBasic    = "BASIC"
	UnitAdvanced = "ADVANCED"
	UnitCritical = "CRITICAL"
)

// ValidUnitType reports whether t is a known unit type
func ValidUnitType(t string) bool {
	return t == UnitBasic || t == UnitAdvanced || t == UnitCritical
}
