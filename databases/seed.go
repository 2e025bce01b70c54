package databases

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Seeded holds the entities created by Seed
type Seeded struct {
	Admin      models.User
	Dispatcher models.User
	Paramedics []models.User
	Ambulances []models.Ambulance
	Hospitals  []models.Hospital
	Emergency  models.EmergencyCall
}

// Seed creates a small demo fleet: one admin, one dispatcher, two
// paramedics, three ambulances, two hospitals and one RECEIVED call. Every
// account gets password, hashed with cost.
func Seed(ctx context.Context, s Store, password string, cost int) (*Seeded, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	now := time.Now().UTC()
	out := &Seeded{}

	newUser := func(email, username, name, phone string, role models.Role) (models.User, error) {
		u := models.User{Details: models.UserDetails{
			Email: email, Username: username, Name: name, PhoneNumber: phone,
			Password: string(hash), Role: role, CreatedAt: now, UpdatedAt: now,
		}}
		if err := s.CreateUser(ctx, &u); err != nil {
			return u, fmt.Errorf("seed user %s: %w", email, err)
		}
		return u, nil
	}

	if out.Admin, err = newUser("admin@example.com", "admin", "Ada Admin", "555-0001", models.RoleAdmin); err != nil {
		return nil, err
	}
	if out.Dispatcher, err = newUser("dispatcher@example.com", "dispatch1", "Dana Dispatch", "555-0100", models.RoleDispatcher); err != nil {
		return nil, err
	}
	for i, name := range []string{"Pat Medic", "Sam Medic"} {
		u, err := newUser(fmt.Sprintf("medic%d@example.com", i+1), fmt.Sprintf("medic%d", i+1), name, fmt.Sprintf("555-020%d", i+1), models.RoleParamedic)
		if err != nil {
			return nil, err
		}
		out.Paramedics = append(out.Paramedics, u)
	}

	units := []struct {
		unit      string
		status    models.AmbulanceStatus
		paramedic string
		location  models.GeoPoint
	}{
		{"A101", models.AmbulanceAvailable, out.Paramedics[0].ID, models.GeoPoint{Latitude: 40.7128, Longitude: -74.006}},
		{"A102", models.AmbulanceAvailable, out.Paramedics[1].ID, models.GeoPoint{Latitude: 40.7306, Longitude: -73.9352}},
		{"A103", models.AmbulanceMaintenance, "", models.GeoPoint{Latitude: 40.6782, Longitude: -73.9442}},
	}
	for _, u := range units {
		loc := u.location
		a := models.Ambulance{Details: models.AmbulanceDetails{
			UnitNumber: u.unit, UnitType: models.UnitAdvanced, Status: u.status, Location: &loc,
			AssignedParamedicID: u.paramedic, MaxPatients: 2, CreatedAt: now, UpdatedAt: now,
		}}
		if err := s.CreateAmbulance(ctx, &a); err != nil {
			return nil, fmt.Errorf("seed ambulance %s: %w", u.unit, err)
		}
		out.Ambulances = append(out.Ambulances, a)
	}

	for _, h := range []models.HospitalDetails{
		{Name: "St Mary", Address: "1 Harbour Rd", TotalBeds: 40, AvailableBeds: 12, EmergencyCapacity: models.CapacityModerate, Specialties: []string{"CARDIAC", "TRAUMA"}},
		{Name: "City General", Address: "200 Main St", TotalBeds: 120, AvailableBeds: 30, EmergencyCapacity: models.CapacityLow, Specialties: []string{"STROKE", "OBSTETRIC"}},
	} {
		h.CreatedAt, h.UpdatedAt = now, now
		hospital := models.Hospital{Details: h}
		if err := s.CreateHospital(ctx, &hospital); err != nil {
			return nil, fmt.Errorf("seed hospital %s: %w", h.Name, err)
		}
		out.Hospitals = append(out.Hospitals, hospital)
	}

	out.Emergency = models.EmergencyCall{Details: models.EmergencyDetails{
		CallCode:        "EMG-" + now.Format("20060102") + "-SEED01",
		Status:          models.EmergencyReceived,
		EmergencyType:   "CARDIAC",
		Priority:        "HIGH",
		Description:     "Adult male, chest pain",
		CallerName:      "Jo Caller",
		CallerPhone:     "555-0300",
		PatientName:     "Jo Patient",
		PatientAge:      58,
		LocationAddress: "12 Harbour St",
		Location:        models.GeoPoint{Latitude: 40.7138, Longitude: -74.001},
		ReceivedAt:      now,
		UpdatedAt:       now,
	}}
	if err := s.CreateEmergency(ctx, &out.Emergency); err != nil {
		return nil, fmt.Errorf("seed emergency: %w", err)
	}
	return out, nil
}
