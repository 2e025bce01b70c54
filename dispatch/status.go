package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// ambulance status that follows a call entering each crew state
var ambulanceStatusFor = map[models.EmergencyStatus]models.AmbulanceStatus{
	models.EmergencyEnRoute:      models.AmbulanceEnRoute,
	models.EmergencyOnScene:      models.AmbulanceOnScene,
	models.EmergencyTransporting: models.AmbulanceTransporting,
}

// UpdateEmergencyStatus moves a call one step along its lifecycle. Paramedics
// may only move calls they are assigned to.
func (c *Coordinator) UpdateEmergencyStatus(ctx context.Context, callID string, status models.EmergencyStatus, requester models.Identity) (*models.EmergencyCall, error) {
	if !requester.HasRole(models.RoleDispatcher, models.RoleAdmin, models.RoleParamedic, models.RoleSystem) {
		return nil, fmt.Errorf("%w: not allowed to update emergency status", models.ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}

	var (
		updated   models.EmergencyCall
		ambulance *models.Ambulance
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		call, err := tx.LockEmergency(ctx, callID)
		if err != nil {
			return err
		}
		if requester.Role == models.RoleParamedic && call.Details.AssignedParamedicID != requester.UserID {
			return fmt.Errorf("%w: paramedic is not assigned to emergency %s", models.ErrForbidden, call.Details.CallCode)
		}
		if err := models.ValidateStatusUpdate(call.Details.Status, status); err != nil {
			return err
		}

		now := c.now().UTC()
		call.Details.Status = status
		call.Details.UpdatedAt = now
		if err := tx.SaveEmergency(ctx, call); err != nil {
			return err
		}
		updated = *call

		next, ok := ambulanceStatusFor[status]
		if !ok || call.Details.AssignedAmbulanceID == "" {
			return nil
		}
		amb, err := tx.LockAmbulance(ctx, call.Details.AssignedAmbulanceID)
		if errors.Is(err, models.ErrNotFound) {
			zap.S().Warnw("assigned ambulance missing", "emergencyId", call.ID, "ambulanceId", call.Details.AssignedAmbulanceID)
			return nil
		}
		if err != nil {
			return err
		}
		if amb.Details.CurrentEmergencyID != call.ID || amb.Details.Status == next {
			return nil
		}
		amb.Details.Status = next
		amb.Details.UpdatedAt = now
		if err := tx.SaveAmbulance(ctx, amb); err != nil {
			return err
		}
		ambulance = amb
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("emergency status updated", "emergencyId", updated.ID, "status", updated.Details.Status, "by", requester.UserID)
	events := []models.Event{models.NewEmergencyEvent(models.EventStatusUpdate, updated)}
	if ambulance != nil {
		events = append(events, models.NewAmbulanceEvent(models.EventStatusUpdate, *ambulance))
	}
	c.emit(ctx, events...)
	return &updated, nil
}

// UpdateAmbulanceLocation stores a new position for a unit. Coordinates are
// range checked before anything is read and rounded to six decimals.
func (c *Coordinator) UpdateAmbulanceLocation(ctx context.Context, ambulanceID string, lat, lon float64, requester models.Identity) (*models.Ambulance, error) {
	if err := models.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if !requester.HasRole(models.RoleDispatcher, models.RoleAdmin, models.RoleParamedic, models.RoleSystem) {
		return nil, fmt.Errorf("%w: not allowed to update ambulance location", models.ErrForbidden)
	}

	var updated models.Ambulance
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		amb, err := tx.LockAmbulance(ctx, ambulanceID)
		if err != nil {
			return err
		}
		if requester.Role == models.RoleParamedic && amb.Details.AssignedParamedicID != requester.UserID {
			return fmt.Errorf("%w: paramedic is not assigned to ambulance %s", models.ErrForbidden, amb.Details.UnitNumber)
		}
		now := c.now().UTC()
		amb.Details.Location = &models.GeoPoint{
			Latitude:  models.RoundCoordinate(lat),
			Longitude: models.RoundCoordinate(lon),
		}
		amb.Details.LastLocationUpdate = &now
		amb.Details.UpdatedAt = now
		if err := tx.SaveAmbulance(ctx, amb); err != nil {
			return err
		}
		updated = *amb
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("ambulance location updated", "ambulanceId", updated.ID, "lat", updated.Details.Location.Latitude, "lon", updated.Details.Location.Longitude)
	c.emit(ctx, models.NewAmbulanceEvent(models.EventLocationUpdate, updated))
	return &updated, nil
}

// UpdateHospitalCapacity changes bed counters and the capacity tier. The tier
// is independent of the counters.
func (c *Coordinator) UpdateHospitalCapacity(ctx context.Context, hospitalID string, update models.CapacityUpdate, requester models.Identity) (*models.Hospital, error) {
	if !requester.HasRole(models.RoleDispatcher, models.RoleAdmin) {
		return nil, fmt.Errorf("%w: only dispatchers can update hospital capacity", models.ErrForbidden)
	}
	if update.Empty() {
		return nil, fmt.Errorf("%w: no capacity fields given", models.ErrInvalidInput)
	}
	if update.TotalBeds != nil && *update.TotalBeds < 0 {
		return nil, fmt.Errorf("%w: totalBeds must not be negative", models.ErrInvalidInput)
	}
	if update.AvailableBeds != nil && *update.AvailableBeds < 0 {
		return nil, fmt.Errorf("%w: availableBeds must not be negative", models.ErrInvalidInput)
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
		if update.TotalBeds != nil {
			h.Details.TotalBeds = *update.TotalBeds
		}
		if update.AvailableBeds != nil {
			h.Details.AvailableBeds = *update.AvailableBeds
		}
		if update.EmergencyCapacity != nil {
			h.Details.EmergencyCapacity = *update.EmergencyCapacity
		}
		if h.Details.AvailableBeds > h.Details.TotalBeds {
			return fmt.Errorf("%w: availableBeds %d exceeds totalBeds %d", models.ErrInvalidInput, h.Details.AvailableBeds, h.Details.TotalBeds)
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

	zap.S().Infow("hospital capacity updated", "hospitalId", updated.ID, "availableBeds", updated.Details.AvailableBeds, "tier", updated.Details.EmergencyCapacity)
	c.emit(ctx, models.NewHospitalEvent(models.EventCapacityUpdate, updated))
	return &updated, nil
}

// ToggleAvailability flips a paramedic's availability. An unset flag counts
// as available and becomes false.
func (c *Coordinator) ToggleAvailability(ctx context.Context, requester models.Identity) (*models.User, error) {
	if !requester.HasRole(models.RoleParamedic) {
		return nil, fmt.Errorf("%w: only paramedics have an availability flag", models.ErrForbidden)
	}
	user, err := c.store.GetUser(ctx, requester.UserID)
	if err != nil {
		return nil, err
	}
	available := !user.Details.Available()
	user.Details.IsAvailable = &available
	user.Details.UpdatedAt = c.now().UTC()
	if err := c.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	zap.S().Infow("paramedic availability changed", "paramedicId", user.ID, "available", available)
	return user, nil
}
