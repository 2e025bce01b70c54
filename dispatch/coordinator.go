// Package dispatch owns every state change of emergencies, ambulances and
// hospitals. Writes go through store transactions; events are emitted only
// after commit.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Notifier receives domain events after they are committed. Implementations
// must not block for long and report their own failures.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// NoopNotifier drops every event
type NoopNotifier struct{}

// Notify does nothing
func (NoopNotifier) Notify(context.Context, models.Event) {}

// Coordinator performs the transactional operations of the dispatch core
type Coordinator struct {
	store    databases.Store
	notifier Notifier
	metrics  *metrics.Recorder
	now      func() time.Time
	// bcrypt cost of account passwords
	passwordCost int
}

// Option customises a Coordinator
type Option func(*Coordinator)

// WithMetrics records dispatch outcomes on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = r }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPasswordCost sets the bcrypt cost used when hashing account passwords
func WithPasswordCost(cost int) Option {
	return func(c *Coordinator) { c.passwordCost = cost }
}

// New returns a Coordinator over store. A nil notifier drops events.
func New(store databases.Store, notifier Notifier, opts ...Option) *Coordinator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	c := &Coordinator{store: store, notifier: notifier, now: time.Now, passwordCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) emit(ctx context.Context, events ...models.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range events {
		c.notifier.Notify(ctx, e)
	}
}

// Dispatch assigns an available ambulance, and optionally a paramedic, to a
// call that has not been dispatched yet. Both rows change in one commit or
// not at all.
func (c *Coordinator) Dispatch(ctx context.Context, req models.DispatchRequest, requester models.Identity) (*models.DispatchResult, error) {
	res, err := c.dispatch(ctx, req, requester)
	c.metrics.DispatchAttempt(resultLabel(err))
	return res, err
}

func (c *Coordinator) dispatch(ctx context.Context, req models.DispatchRequest, requester models.Identity) (*models.DispatchResult, error) {
	if !requester.HasRole(models.RoleDispatcher) {
		return nil, fmt.Errorf("%w: only dispatchers can dispatch ambulances", models.ErrForbidden)
	}
	if req.EmergencyID == "" || req.AmbulanceID == "" {
		return nil, fmt.Errorf("%w: emergencyCallID and ambulanceID are required", models.ErrInvalidInput)
	}

	call, err := c.store.GetEmergency(ctx, req.EmergencyID)
	if err != nil {
		return nil, err
	}
	ambulance, err := c.store.GetAmbulance(ctx, req.AmbulanceID)
	if err != nil {
		return nil, err
	}
	if ambulance.Details.Status != models.AmbulanceAvailable {
		return nil, fmt.Errorf("%w: ambulance %s is %s", models.ErrInvalidState, ambulance.Details.UnitNumber, ambulance.Details.Status)
	}
	if call.Details.Status != models.EmergencyReceived {
		return nil, fmt.Errorf("%w: emergency %s is already %s", models.ErrInvalidState, call.Details.CallCode, call.Details.Status)
	}

	if req.ParamedicID != "" {
		paramedic, err := c.store.GetUser(ctx, req.ParamedicID)
		if err != nil {
			return nil, err
		}
		if paramedic.Details.Role != models.RoleParamedic {
			return nil, fmt.Errorf("%w: user %s is not a paramedic", models.ErrInvalidInput, req.ParamedicID)
		}
	}

	hospitalName := ""
	if req.HospitalID != "" {
		hospital, err := c.store.GetHospital(ctx, req.HospitalID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			zap.S().Warnw("dispatch hospital not found, skipping destination", "hospitalId", req.HospitalID, "emergencyId", call.ID)
		case err != nil:
			return nil, err
		default:
			hospitalName = hospital.Details.Name
		}
	}

	var result models.DispatchResult
	// once the locks are taken the commit runs to completion
	err = c.store.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx databases.Tx) error {
		lockedCall, err := tx.LockEmergency(ctx, call.ID)
		if err != nil {
			return err
		}
		lockedAmbulance, err := tx.LockAmbulance(ctx, ambulance.ID)
		if err != nil {
			return err
		}
		if lockedCall.Details.Status != models.EmergencyReceived {
			return fmt.Errorf("%w: emergency %s changed to %s", models.ErrConflict, lockedCall.Details.CallCode, lockedCall.Details.Status)
		}
		if lockedAmbulance.Details.Status != models.AmbulanceAvailable || lockedAmbulance.Details.CurrentEmergencyID != "" {
			return fmt.Errorf("%w: ambulance %s changed to %s", models.ErrConflict, lockedAmbulance.Details.UnitNumber, lockedAmbulance.Details.Status)
		}
		if err := models.ValidateTransition(lockedCall.Details.Status, models.EmergencyDispatched); err != nil {
			return err
		}

		paramedicID := req.ParamedicID
		if paramedicID == "" {
			paramedicID = lockedAmbulance.Details.AssignedParamedicID
		}

		now := c.now().UTC()
		lockedAmbulance.Details.Status = models.AmbulanceEnRoute
		lockedAmbulance.Details.CurrentEmergencyID = lockedCall.ID
		if paramedicID != "" {
			lockedAmbulance.Details.AssignedParamedicID = paramedicID
		}
		lockedAmbulance.Details.UpdatedAt = now

		lockedCall.Details.AssignedAmbulanceID = lockedAmbulance.ID
		lockedCall.Details.AssignedParamedicID = paramedicID
		lockedCall.Details.DispatcherID = requester.UserID
		if hospitalName != "" {
			lockedCall.Details.HospitalDestination = hospitalName
		}
		lockedCall.Details.Status = models.EmergencyDispatched
		lockedCall.Details.DispatchedAt = &now
		lockedCall.Details.UpdatedAt = now

		if err := tx.SaveEmergency(ctx, lockedCall); err != nil {
			return err
		}
		if err := tx.SaveAmbulance(ctx, lockedAmbulance); err != nil {
			return err
		}
		result = models.DispatchResult{Emergency: *lockedCall, Ambulance: *lockedAmbulance}
		return nil
	})
	if err != nil {
		zap.S().Warnw("dispatch failed", "emergencyId", req.EmergencyID, "ambulanceId", req.AmbulanceID, "error", err)
		return nil, err
	}

	result.Message = fmt.Sprintf("Ambulance %s dispatched to %s", result.Ambulance.Details.UnitNumber, result.Emergency.Details.CallCode)
	zap.S().Infow("ambulance dispatched",
		"emergencyId", result.Emergency.ID,
		"ambulanceId", result.Ambulance.ID,
		"paramedicId", result.Emergency.Details.AssignedParamedicID,
		"dispatcherId", requester.UserID,
	)

	events := []models.Event{
		models.NewAmbulanceEvent(models.EventUnitDispatched, result.Ambulance),
		models.NewEmergencyEvent(models.EventStatusUpdate, result.Emergency),
	}
	if result.Emergency.Details.AssignedParamedicID != "" {
		events = append(events, models.NewParamedicDispatchEvent(result.Emergency))
	}
	c.emit(ctx, events...)
	return &result, nil
}

// CompleteAssignment frees an ambulance at the end of a call. The assigned
// paramedic stays with the unit. An ambulance that is already idle is
// returned unchanged.
func (c *Coordinator) CompleteAssignment(ctx context.Context, ambulanceID string, requester models.Identity) (*models.Ambulance, error) {
	if !requester.HasRole(models.RoleDispatcher, models.RoleAdmin, models.RoleSystem) {
		return nil, fmt.Errorf("%w: only dispatchers can complete assignments", models.ErrForbidden)
	}

	var (
		updated models.Ambulance
		changed bool
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		ambulance, err := tx.LockAmbulance(ctx, ambulanceID)
		if err != nil {
			return err
		}
		switch ambulance.Details.Status {
		case models.AmbulanceMaintenance, models.AmbulanceOutOfService:
			return fmt.Errorf("%w: ambulance %s is %s", models.ErrInvalidState, ambulance.Details.UnitNumber, ambulance.Details.Status)
		case models.AmbulanceAvailable:
			if ambulance.Details.CurrentEmergencyID == "" {
				updated = *ambulance
				return nil
			}
		}

		ambulance.Details.CurrentEmergencyID = ""
		ambulance.Details.Status = models.AmbulanceAvailable
		ambulance.Details.UpdatedAt = c.now().UTC()
		if err := tx.SaveAmbulance(ctx, ambulance); err != nil {
			return err
		}
		updated = *ambulance
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		zap.S().Infow("assignment completed", "ambulanceId", updated.ID, "paramedicId", updated.Details.AssignedParamedicID)
		c.emit(ctx, models.NewAmbulanceEvent(models.EventAssignmentCompleted, updated))
	}
	return &updated, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrInvalidTransition):
		return "invalid_state"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}
