package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestDispatch_A101ToE55(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	res := f.dispatchA101(t)

	assert.Equal(t, "Ambulance A101 dispatched to E55", res.Message)

	amb, err := f.store.GetAmbulance(ctx, f.ambulance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AmbulanceEnRoute, amb.Details.Status)
	assert.Equal(t, f.call.ID, amb.Details.CurrentEmergencyID)
	assert.Equal(t, f.paramedic.ID, amb.Details.AssignedParamedicID)
	assert.NoError(t, amb.CheckInvariant())

	call, err := f.store.GetEmergency(ctx, f.call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyDispatched, call.Details.Status)
	assert.Equal(t, f.ambulance.ID, call.Details.AssignedAmbulanceID)
	assert.Equal(t, f.paramedic.ID, call.Details.AssignedParamedicID)
	assert.Equal(t, f.dispatcher.ID, call.Details.DispatcherID)
	assert.Equal(t, "St Mary", call.Details.HospitalDestination)
	require.NotNil(t, call.Details.DispatchedAt)
	assert.Equal(t, fixedNow, *call.Details.DispatchedAt)

	// the result carries the committed rows
	assert.Equal(t, amb.Version, res.Ambulance.Version)
	assert.Equal(t, call.Version, res.Emergency.Version)

	events := f.notifier.Events()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventUnitDispatched, events[0].Kind)
	assert.Equal(t, models.MessageAmbulanceUpdate, events[0].Type)
	assert.Empty(t, events[0].ParamedicID)
	assert.Equal(t, models.EventStatusUpdate, events[1].Kind)
	assert.Equal(t, models.MessageEmergencyUpdate, events[1].Type)
	assert.Equal(t, f.paramedic.ID, events[1].ParamedicID)
	assert.Equal(t, models.EventUnitDispatched, events[2].Kind)
	assert.Equal(t, models.MessageParamedicDispatched, events[2].Type)
	assert.Equal(t, f.paramedic.ID, events[2].ParamedicID)
}

func TestDispatch_ExplicitParamedicWins(t *testing.T) {
	f := newFixture(t, time.Second)

	res, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID, ParamedicID: f.other.ID,
	}, f.dispatcherID())
	require.NoError(t, err)

	assert.Equal(t, f.other.ID, res.Emergency.Details.AssignedParamedicID)
	assert.Equal(t, f.other.ID, res.Ambulance.Details.AssignedParamedicID)
}

func TestDispatch_AmbulanceOnlyWithoutParamedic(t *testing.T) {
	f := newFixture(t, time.Second)
	bare := f.addAmbulance(t, "A202", models.AmbulanceAvailable)

	res, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: bare.ID,
	}, f.dispatcherID())
	require.NoError(t, err)

	assert.Empty(t, res.Emergency.Details.AssignedParamedicID)
	assert.Empty(t, res.Emergency.Details.HospitalDestination)
	assert.Equal(t, []models.EventKind{models.EventUnitDispatched, models.EventStatusUpdate}, f.notifier.Kinds())
}

func TestDispatch_UnknownHospitalIsSkipped(t *testing.T) {
	f := newFixture(t, time.Second)

	res, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID, HospitalID: "000000000000000000000000",
	}, f.dispatcherID())
	require.NoError(t, err)
	assert.Empty(t, res.Emergency.Details.HospitalDestination)
}

func TestDispatch_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity)
		wantErr error
	}{
		{
			name: "paramedic requester",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID}, f.paramedicID()
			},
			wantErr: models.ErrForbidden,
		},
		{
			name: "anonymous requester before lookup",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: "missing", AmbulanceID: "missing"}, models.Identity{}
			},
			wantErr: models.ErrForbidden,
		},
		{
			name: "unknown call",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: "missing", AmbulanceID: f.ambulance.ID}, f.dispatcherID()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "unknown ambulance",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: "missing"}, f.dispatcherID()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "missing ids",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{}, f.dispatcherID()
			},
			wantErr: models.ErrInvalidInput,
		},
		{
			name: "ambulance in maintenance",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				amb := f.addAmbulance(t, "A303", models.AmbulanceMaintenance)
				return models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: amb.ID}, f.dispatcherID()
			},
			wantErr: models.ErrInvalidState,
		},
		{
			name: "explicit paramedic is a dispatcher",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID, ParamedicID: f.dispatcher.ID}, f.dispatcherID()
			},
			wantErr: models.ErrInvalidInput,
		},
		{
			name: "explicit paramedic unknown",
			prepare: func(t *testing.T, f *fixture) (models.DispatchRequest, models.Identity) {
				return models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID, ParamedicID: "missing"}, f.dispatcherID()
			},
			wantErr: models.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			req, who := tt.prepare(t, f)

			res, err := f.coord.Dispatch(context.Background(), req, who)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.notifier.Events())

			call, err := f.store.GetEmergency(context.Background(), f.call.ID)
			require.NoError(t, err)
			assert.Equal(t, models.EmergencyReceived, call.Details.Status)
			assert.Equal(t, int32(0), call.Version)
			amb, err := f.store.GetAmbulance(context.Background(), f.ambulance.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AmbulanceAvailable, amb.Details.Status)
			assert.Equal(t, int32(0), amb.Version)
		})
	}
}

func TestDispatch_CallAlreadyDispatched(t *testing.T) {
	f := newFixture(t, time.Second)
	f.dispatchA101(t)
	spare := f.addAmbulance(t, "A404", models.AmbulanceAvailable)

	_, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: spare.ID,
	}, f.dispatcherID())

	assert.ErrorIs(t, err, models.ErrInvalidState)
	amb, err := f.store.GetAmbulance(context.Background(), spare.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AmbulanceAvailable, amb.Details.Status)
	assert.Empty(t, amb.Details.CurrentEmergencyID)
}

func TestDispatch_SecondDispatchSameAmbulance(t *testing.T) {
	f := newFixture(t, time.Second)
	first := f.dispatchA101(t)
	next := f.addCall(t, "E57")
	before := len(f.notifier.Events())

	for _, callID := range []string{f.call.ID, next.ID} {
		res, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
			EmergencyID: callID, AmbulanceID: f.ambulance.ID,
		}, f.dispatcherID())
		assert.Nil(t, res)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	}

	amb, err := f.store.GetAmbulance(context.Background(), f.ambulance.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Ambulance.Version, amb.Version)
	assert.Equal(t, f.call.ID, amb.Details.CurrentEmergencyID)
	call, err := f.store.GetEmergency(context.Background(), next.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyReceived, call.Details.Status)
	assert.Empty(t, call.Details.AssignedAmbulanceID)
	assert.Len(t, f.notifier.Events(), before)
}

func TestDispatch_RetriedFailureChangesNothing(t *testing.T) {
	f := newFixture(t, time.Second)
	broken := f.addAmbulance(t, "A303", models.AmbulanceMaintenance)
	req := models.DispatchRequest{EmergencyID: f.call.ID, AmbulanceID: broken.ID}

	for i := 0; i < 3; i++ {
		_, err := f.coord.Dispatch(context.Background(), req, f.dispatcherID())
		require.ErrorIs(t, err, models.ErrInvalidState)

		call, err := f.store.GetEmergency(context.Background(), f.call.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EmergencyReceived, call.Details.Status)
		assert.Equal(t, int32(0), call.Version)
		amb, err := f.store.GetAmbulance(context.Background(), broken.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AmbulanceMaintenance, amb.Details.Status)
		assert.Equal(t, int32(0), amb.Version)
	}
	assert.Empty(t, f.notifier.Events())

	// the call is still dispatchable once a working unit is picked
	f.dispatchA101(t)
}

func TestDispatch_ConcurrentSameAmbulance(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	const callers = 8
	calls := []models.EmergencyCall{f.call}
	for i := 1; i < callers; i++ {
		calls = append(calls, f.addCall(t, "E"+string(rune('A'+i))))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
	)
	start := make(chan struct{})
	for _, call := range calls {
		wg.Add(1)
		go func(callID string) {
			defer wg.Done()
			<-start
			_, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
				EmergencyID: callID, AmbulanceID: f.ambulance.ID,
			}, f.dispatcherID())
			if err == nil {
				mu.Lock()
				successes = append(successes, callID)
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrInvalidState), "unexpected error %v", err)
		}(call.ID)
	}
	close(start)
	wg.Wait()

	require.Len(t, successes, 1)
	winner := successes[0]

	amb, err := f.store.GetAmbulance(context.Background(), f.ambulance.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, amb.Details.CurrentEmergencyID)

	for _, call := range calls {
		got, err := f.store.GetEmergency(context.Background(), call.ID)
		require.NoError(t, err)
		if call.ID == winner {
			assert.Equal(t, models.EmergencyDispatched, got.Details.Status)
			assert.Equal(t, f.ambulance.ID, got.Details.AssignedAmbulanceID)
			continue
		}
		assert.Equal(t, models.EmergencyReceived, got.Details.Status)
		assert.Empty(t, got.Details.AssignedAmbulanceID)
		assert.Empty(t, got.Details.AssignedParamedicID)
	}
}

func TestDispatch_DisjointDispatchesRunInParallel(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	second := f.addCall(t, "E56")
	spare := f.addAmbulance(t, "A505", models.AmbulanceAvailable)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, req := range []models.DispatchRequest{
		{EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID},
		{EmergencyID: second.ID, AmbulanceID: spare.ID},
	} {
		wg.Add(1)
		go func(i int, req models.DispatchRequest) {
			defer wg.Done()
			_, errs[i] = f.coord.Dispatch(context.Background(), req, f.dispatcherID())
		}(i, req)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestDispatch_LockTimeoutLeavesRowsUntouched(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.store.WithTx(context.Background(), func(ctx context.Context, tx databases.Tx) error {
			if _, err := tx.LockAmbulance(ctx, f.ambulance.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID,
	}, f.dispatcherID())
	assert.ErrorIs(t, err, models.ErrUnavailable)

	close(release)
	require.NoError(t, <-done)

	call, err := f.store.GetEmergency(context.Background(), f.call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyReceived, call.Details.Status)
	assert.Empty(t, call.Details.AssignedAmbulanceID)
	assert.Empty(t, f.notifier.Events())
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, e models.Event) {
	m.Called(ctx, e)
}

func TestDispatch_NotifierReceivesCommittedEvents(t *testing.T) {
	f := newFixture(t, time.Second)
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Kind == models.EventUnitDispatched || e.Kind == models.EventStatusUpdate
	})).Return()
	coord := New(f.store, n, WithClock(func() time.Time { return fixedNow }))

	_, err := coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID,
	}, f.dispatcherID())
	require.NoError(t, err)

	n.AssertNumberOfCalls(t, "Notify", 3)
}

func TestCompleteAssignment(t *testing.T) {
	f := newFixture(t, time.Second)
	f.dispatchA101(t)
	ctx := context.Background()

	amb, err := f.coord.CompleteAssignment(ctx, f.ambulance.ID, f.dispatcherID())
	require.NoError(t, err)

	assert.Equal(t, models.AmbulanceAvailable, amb.Details.Status)
	assert.Empty(t, amb.Details.CurrentEmergencyID)
	assert.Equal(t, f.paramedic.ID, amb.Details.AssignedParamedicID)
	assert.NoError(t, amb.CheckInvariant())

	events := f.notifier.Events()
	last := events[len(events)-1]
	assert.Equal(t, models.EventAssignmentCompleted, last.Kind)
	assert.Equal(t, models.MessageAmbulanceUpdate, last.Type)

	// already idle, nothing to do
	before := len(f.notifier.Events())
	_, err = f.coord.CompleteAssignment(ctx, f.ambulance.ID, f.dispatcherID())
	require.NoError(t, err)
	assert.Len(t, f.notifier.Events(), before)
}

func TestCompleteAssignment_Rejections(t *testing.T) {
	f := newFixture(t, time.Second)
	broken := f.addAmbulance(t, "A606", models.AmbulanceOutOfService)

	_, err := f.coord.CompleteAssignment(context.Background(), broken.ID, f.dispatcherID())
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.coord.CompleteAssignment(context.Background(), f.ambulance.ID, f.paramedicID())
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.coord.CompleteAssignment(context.Background(), "missing", f.dispatcherID())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "conflict", resultLabel(models.ErrConflict))
	assert.Equal(t, "invalid_state", resultLabel(models.ErrInvalidTransition))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
}
