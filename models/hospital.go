package models

import "time"

// CapacityTier is the staff-reported emergency load of a hospital
type CapacityTier string

// Capacity tiers
const (
	CapacityLow      CapacityTier = "LOW"
	CapacityModerate CapacityTier = "MODERATE"
	CapacityHigh     CapacityTier = "HIGH"
	CapacityFull     CapacityTier = "FULL"
)

// Valid reports whether t is a known tier
func (t CapacityTier) Valid() bool {
	switch t {
	case CapacityLow, CapacityModerate, CapacityHigh, CapacityFull:
		return true
	}
	return false
}

// Hospital holds the structure for the hospitals collection in mongo
type Hospital struct {
	ID      string          `json:"_id" bson:"_id"`
	Details HospitalDetails `json:"hospital" bson:"hospital"`
	Version int32           `json:"__v" bson:"__v"`
}

// HospitalDetails holds the structure for the inner hospital structure as
// defined in the hospitals collection in mongo
type HospitalDetails struct {
	Name              string       `json:"name" bson:"name"`
	Address           string       `json:"address" bson:"address"`
	Location          GeoPoint     `json:"location" bson:"location"`
	PhoneNumber       string       `json:"phoneNumber" bson:"phoneNumber"`
	TotalBeds         int          `json:"totalBeds" bson:"totalBeds"`
	AvailableBeds     int          `json:"availableBeds" bson:"availableBeds"`
	EmergencyCapacity CapacityTier `json:"emergencyCapacity" bson:"emergencyCapacity"`
	Specialties       []string     `json:"specialties" bson:"specialties"`
	CreatedAt         time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// CapacityUpdate carries the capacity fields a dispatcher may change. Nil
// fields are left untouched.
type CapacityUpdate struct {
	TotalBeds         *int          `json:"totalBeds"`
	AvailableBeds     *int          `json:"availableBeds"`
	EmergencyCapacity *CapacityTier `json:"emergencyCapacity"`
}

// Empty reports whether the update changes nothing
func (u CapacityUpdate) Empty() bool {
	return u.TotalBeds == nil && u.AvailableBeds == nil && u.EmergencyCapacity == nil
}

// HospitalInput is the body of a hospital registration
type HospitalInput struct {
	Name              string       `json:"name"`
	Address           string       `json:"address"`
	Location          GeoPoint     `json:"location"`
	PhoneNumber       string       `json:"phoneNumber"`
	TotalBeds         int          `json:"totalBeds"`
	AvailableBeds     int          `json:"availableBeds"`
	EmergencyCapacity CapacityTier `json:"emergencyCapacity"`
	Specialties       []string     `json:"specialties"`
}

// HospitalUpdate is a partial hospital edit. Only admins may move a hospital.
type HospitalUpdate struct {
	CapacityUpdate
	Name        *string   `json:"name"`
	Address     *string   `json:"address"`
	PhoneNumber *string   `json:"phoneNumber"`
	Specialties []string  `json:"specialties"`
	Location    *GeoPoint `json:"location"`
}

// Empty reports whether the update changes nothing
func (u HospitalUpdate) Empty() bool {
	return u.CapacityUpdate.Empty() && u.Name == nil && u.Address == nil &&
		u.PhoneNumber == nil && u.Specialties == nil && u.Location == nil
}
