package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// CreateAmbulance registers a unit with the fleet. A new unit is never busy.
func (c *Coordinator) CreateAmbulance(ctx context.Context, in models.AmbulanceInput, requester models.Identity) (*models.Ambulance, error) {
	if !requester.HasRole(models.RoleDispatcher) {
		return nil, fmt.Errorf("%w: only dispatchers can register ambulances", models.ErrForbidden)
	}
	in.UnitNumber = strings.TrimSpace(in.UnitNumber)
	if in.UnitNumber == "" {
		return nil, fmt.Errorf("%w: unitNumber is required", models.ErrInvalidInput)
	}
	if in.UnitType == "" {
		in.UnitType = models.UnitBasic
	}
	if !models.ValidUnitType(in.UnitType) {
		return nil, fmt.Errorf("%w: unknown unit type %q", models.ErrInvalidInput, in.UnitType)
	}
	if in.Status == "" {
		in.Status = models.AmbulanceAvailable
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, in.Status)
	}
	if in.Status.IsBusy() {
		return nil, fmt.Errorf("%w: a new ambulance cannot start %s", models.ErrInvalidInput, in.Status)
	}
	if in.MaxPatients == 0 {
		in.MaxPatients = 1
	}
	if in.MaxPatients < 0 {
		return nil, fmt.Errorf("%w: maxPatients must be positive", models.ErrInvalidInput)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude go together", models.ErrInvalidInput)
	}
	if in.AssignedParamedicID != "" {
		paramedic, err := c.store.GetUser(ctx, in.AssignedParamedicID)
		if err != nil {
			return nil, err
		}
		if paramedic.Details.Role != models.RoleParamedic {
			return nil, fmt.Errorf("%w: user %s is not a paramedic", models.ErrInvalidInput, in.AssignedParamedicID)
		}
	}

	now := c.now().UTC()
	ambulance := models.Ambulance{Details: models.AmbulanceDetails{
		UnitNumber:          in.UnitNumber,
		UnitType:            in.UnitType,
		Status:              in.Status,
		AssignedParamedicID: in.AssignedParamedicID,
		EquipmentList:       in.EquipmentList,
		MaxPatients:         in.MaxPatients,
		CreatedAt:           now,
		UpdatedAt:           now,
	}}
	if in.Latitude != nil {
		if err := models.ValidateCoordinates(*in.Latitude, *in.Longitude); err != nil {
			return nil, err
		}
		ambulance.Details.Location = &models.GeoPoint{
			Latitude:  models.RoundCoordinate(*in.Latitude),
			Longitude: models.RoundCoordinate(*in.Longitude),
		}
		ambulance.Details.LastLocationUpdate = &now
	}
	if err := c.store.CreateAmbulance(ctx, &ambulance); err != nil {
		return nil, err
	}

	zap.S().Infow("ambulance registered", "ambulanceId", ambulance.ID, "unit", ambulance.Details.UnitNumber, "by", requester.UserID)
	c.emit(ctx, models.NewAmbulanceEvent(models.EventAmbulanceCreated, ambulance))
	return &ambulance, nil
}

// DeleteAmbulance removes an idle unit. Calls it served keep their history
// with the ambulance reference blanked.
func (c *Coordinator) DeleteAmbulance(ctx context.Context, ambulanceID string, requester models.Identity) error {
	if !requester.HasRole(models.RoleDispatcher) {
		return fmt.Errorf("%w: only dispatchers can remove ambulances", models.ErrForbidden)
	}

	var removed models.Ambulance
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		ambulance, err := tx.LockAmbulance(ctx, ambulanceID)
		if err != nil {
			return err
		}
		if ambulance.Details.CurrentEmergencyID != "" {
			return fmt.Errorf("%w: ambulance %s is assigned to an emergency", models.ErrInvalidState, ambulance.Details.UnitNumber)
		}
		if ambulance.Details.Status != models.AmbulanceAvailable {
			return fmt.Errorf("%w: ambulance %s is %s", models.ErrInvalidState, ambulance.Details.UnitNumber, ambulance.Details.Status)
		}
		removed = *ambulance
		return tx.DeleteAmbulance(ctx, ambulance.ID)
	})
	if err != nil {
		return err
	}

	zap.S().Infow("ambulance removed", "ambulanceId", removed.ID, "unit", removed.Details.UnitNumber, "by", requester.UserID)
	c.emit(ctx, models.NewAmbulanceEvent(models.EventAmbulanceDeleted, removed))
	return nil
}

func validateBeds(total, available int) error {
	if total < 0 || available < 0 {
		return fmt.Errorf("%w: bed counts must not be negative", models.ErrInvalidInput)
	}
	if available > total {
		return fmt.Errorf("%w: availableBeds %d exceeds totalBeds %d", models.ErrInvalidInput, available, total)
	}
	return nil
}

// CreateHospital registers a receiving hospital
func (c *Coordinator) CreateHospital(ctx context.Context, in models.HospitalInput, requester models.Identity) (*models.Hospital, error) {
	if !requester.HasRole(models.RoleAdmin) {
		return nil, fmt.Errorf("%w: only admins can register hospitals", models.ErrForbidden)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidInput)
	}
	if err := models.ValidateCoordinates(in.Location.Latitude, in.Location.Longitude); err != nil {
		return nil, err
	}
	if err := validateBeds(in.TotalBeds, in.AvailableBeds); err != nil {
		return nil, err
	}
	if in.EmergencyCapacity == "" {
		in.EmergencyCapacity = models.CapacityLow
	}
	if !in.EmergencyCapacity.Valid() {
		return nil, fmt.Errorf("%w: unknown capacity tier %q", models.ErrInvalidInput, in.EmergencyCapacity)
	}

	now := c.now().UTC()
	hospital := models.Hospital{Details: models.HospitalDetails{
		Name:              in.Name,
		Address:           in.Address,
		Location:          in.Location,
		PhoneNumber:       in.PhoneNumber,
		TotalBeds:         in.TotalBeds,
		AvailableBeds:     in.AvailableBeds,
		EmergencyCapacity: in.EmergencyCapacity,
		Specialties:       in.Specialties,
		CreatedAt:         now,
		UpdatedAt:         now,
	}}
	if err := c.store.CreateHospital(ctx, &hospital); err != nil {
		return nil, err
	}

	zap.S().Infow("hospital registered", "hospitalId", hospital.ID, "name", hospital.Details.Name)
	c.emit(ctx, models.NewHospitalEvent(models.EventHospitalCreated, hospital))
	return &hospital, nil
}

// UpdateHospital edits a hospital. Dispatchers may change everything except
// its location.
func (c *Coordinator) UpdateHospital(ctx context.Context, hospitalID string, update models.HospitalUpdate, requester models.Identity) (*models.Hospital, error) {
	if !requester.HasRole(models.RoleAdmin, models.RoleDispatcher) {
		return nil, fmt.Errorf("%w: not allowed to edit hospitals", models.ErrForbidden)
	}
	if update.Location != nil && requester.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can move a hospital", models.ErrForbidden)
	}
	if update.Empty() {
		return nil, fmt.Errorf("%w: no fields given", models.ErrInvalidInput)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be blank", models.ErrInvalidInput)
	}
	if update.Location != nil {
		if err := models.ValidateCoordinates(update.Location.Latitude, update.Location.Longitude); err != nil {
			return nil, err
		}
	}
	if update.EmergencyCapacity != nil && !update.EmergencyCapacity.Valid() {
		return nil, fmt.Errorf("%w: unknown capacity tier %q", models.ErrInvalidInput, *update.EmergencyCapacity)
	}

	var updated models.Hospital
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		h, err := tx.LockHospital(ctx, hospitalID)
		if err != nil {
			return err
		}
		if update.Name != nil {
			h.Details.Name = strings.TrimSpace(*update.Name)
		}
		if update.Address != nil {
			h.Details.Address = *update.Address
		}
		if update.PhoneNumber != nil {
			h.Details.PhoneNumber = *update.PhoneNumber
		}
		if update.Specialties != nil {
			h.Details.Specialties = update.Specialties
		}
		if update.Location != nil {
			h.Details.Location = *update.Location
		}
		if update.TotalBeds != nil {
			h.Details.TotalBeds = *update.TotalBeds
		}
		if update.AvailableBeds != nil {
			h.Details.AvailableBeds = *update.AvailableBeds
		}
		if update.EmergencyCapacity != nil {
			h.Details.EmergencyCapacity = *update.EmergencyCapacity
		}
		if err := validateBeds(h.Details.TotalBeds, h.Details.AvailableBeds); err != nil {
			return err
		}
		h.Details.UpdatedAt = c.now().UTC()
		if err := tx.SaveHospital(ctx, h); err != nil {
			return err
		}
		updated = *h
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("hospital updated", "hospitalId", updated.ID, "by", requester.UserID)
	c.emit(ctx, models.NewHospitalEvent(models.EventHospitalUpdated, updated))
	return &updated, nil
}

// DeleteHospital removes a hospital. Calls keep the destination name they
// were dispatched with.
func (c *Coordinator) DeleteHospital(ctx context.Context, hospitalID string, requester models.Identity) error {
	if !requester.HasRole(models.RoleAdmin) {
		return fmt.Errorf("%w: only admins can remove hospitals", models.ErrForbidden)
	}

	var removed models.Hospital
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		h, err := tx.LockHospital(ctx, hospitalID)
		if err != nil {
			return err
		}
		removed = *h
		return tx.DeleteHospital(ctx, h.ID)
	})
	if err != nil {
		return err
	}

	zap.S().Infow("hospital removed", "hospitalId", removed.ID, "name", removed.Details.Name)
	c.emit(ctx, models.NewHospitalEvent(models.EventHospitalDeleted, removed))
	return nil
}
