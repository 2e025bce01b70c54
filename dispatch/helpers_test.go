package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

func (r *recordingNotifier) Kinds() []models.EventKind {
	var kinds []models.EventKind
	for _, e := range r.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	store    *databases.MemoryStore
	notifier *recordingNotifier
	coord    *Coordinator

	dispatcher models.User
	paramedic  models.User
	other      models.User
	ambulance  models.Ambulance
	call       models.EmergencyCall
	hospital   models.Hospital
}

func (f *fixture) dispatcherID() models.Identity {
	return models.Identity{UserID: f.dispatcher.ID, Username: "dispatch1", Role: models.RoleDispatcher, Authenticated: true}
}

func (f *fixture) paramedicID() models.Identity {
	return models.Identity{UserID: f.paramedic.ID, Username: "medic1", Role: models.RoleParamedic, Authenticated: true}
}

func (f *fixture) otherParamedicID() models.Identity {
	return models.Identity{UserID: f.other.ID, Username: "medic2", Role: models.RoleParamedic, Authenticated: true}
}

// newFixture seeds ambulance A101 crewed by paramedic P, call E55 in RECEIVED
// and one hospital.
func newFixture(t *testing.T, lockWait time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: databases.NewMemoryStore(lockWait), notifier: &recordingNotifier{}}
	f.coord = New(f.store, f.notifier, WithClock(func() time.Time { return fixedNow }))

	f.dispatcher = models.User{Details: models.UserDetails{Email: "dispatch1@example.com", Name: "Dana Dispatch", PhoneNumber: "555-0100", Role: models.RoleDispatcher}}
	f.paramedic = models.User{Details: models.UserDetails{Email: "medic1@example.com", Name: "Pat Medic", Role: models.RoleParamedic}}
	f.other = models.User{Details: models.UserDetails{Email: "medic2@example.com", Name: "Sam Medic", Role: models.RoleParamedic}}
	for _, u := range []*models.User{&f.dispatcher, &f.paramedic, &f.other} {
		require.NoError(t, f.store.CreateUser(ctx, u))
	}

	f.ambulance = models.Ambulance{Details: models.AmbulanceDetails{
		UnitNumber:          "A101",
		Status:              models.AmbulanceAvailable,
		AssignedParamedicID: f.paramedic.ID,
	}}
	require.NoError(t, f.store.CreateAmbulance(ctx, &f.ambulance))

	f.call = models.EmergencyCall{Details: models.EmergencyDetails{
		CallCode:        "E55",
		Status:          models.EmergencyReceived,
		EmergencyType:   "CARDIAC",
		Priority:        "HIGH",
		LocationAddress: "12 Harbour St",
		PatientName:     "Jo Patient",
		ReceivedAt:      fixedNow.Add(-time.Minute),
	}}
	require.NoError(t, f.store.CreateEmergency(ctx, &f.call))

	f.hospital = models.Hospital{Details: models.HospitalDetails{
		Name: "St Mary", TotalBeds: 40, AvailableBeds: 10, EmergencyCapacity: models.CapacityModerate,
	}}
	require.NoError(t, f.store.CreateHospital(ctx, &f.hospital))
	return f
}

func (f *fixture) addCall(t *testing.T, code string) models.EmergencyCall {
	t.Helper()
	call := models.EmergencyCall{Details: models.EmergencyDetails{
		CallCode: code, Status: models.EmergencyReceived, ReceivedAt: fixedNow,
	}}
	require.NoError(t, f.store.CreateEmergency(context.Background(), &call))
	return call
}

func (f *fixture) addAmbulance(t *testing.T, unit string, status models.AmbulanceStatus) models.Ambulance {
	t.Helper()
	amb := models.Ambulance{Details: models.AmbulanceDetails{UnitNumber: unit, Status: status}}
	require.NoError(t, f.store.CreateAmbulance(context.Background(), &amb))
	return amb
}

func (f *fixture) dispatchA101(t *testing.T) *models.DispatchResult {
	t.Helper()
	res, err := f.coord.Dispatch(context.Background(), models.DispatchRequest{
		EmergencyID: f.call.ID, AmbulanceID: f.ambulance.ID, HospitalID: f.hospital.ID,
	}, f.dispatcherID())
	require.NoError(t, err)
	return res
}
