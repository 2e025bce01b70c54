package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestAudit(t *testing.T) {
	ctx := context.Background()
	store := databases.NewMemoryStore(time.Second)
	for _, a := range []models.AmbulanceDetails{
		{UnitNumber: "A1", Status: models.AmbulanceAvailable},
		{UnitNumber: "A2", Status: models.AmbulanceAvailable},
		{UnitNumber: "A3", Status: models.AmbulanceEnRoute, CurrentEmergencyID: "e1"},
		{UnitNumber: "A4", Status: models.AmbulanceOnScene},
	} {
		amb := models.Ambulance{Details: a}
		require.NoError(t, store.CreateAmbulance(ctx, &amb))
	}
	for _, st := range []models.EmergencyStatus{models.EmergencyReceived, models.EmergencyOnScene, models.EmergencyClosed} {
		call := models.EmergencyCall{Details: models.EmergencyDetails{Status: st}}
		require.NoError(t, store.CreateEmergency(ctx, &call))
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	s := NewScheduler(store, rec, "")
	report, err := s.Audit(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ByStatus["AVAILABLE"])
	assert.Equal(t, 2, report.ActiveEmergencies)
	require.Len(t, report.Violations, 1)
	assert.Contains(t, report.Violations[0], "A4")

	assert.Equal(t, float64(2), gaugeValue(t, reg, "fleet_ambulances", "AVAILABLE"))
	assert.Equal(t, float64(0), gaugeValue(t, reg, "fleet_ambulances", "MAINTENANCE"))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(databases.NewMemoryStore(time.Second), nil, "every now and then")
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(databases.NewMemoryStore(time.Second), nil, "@every 1h")
	require.NoError(t, s.Start())
	s.Stop()
}

// gaugeValue reads one fleet gauge back out of the registry
func gaugeValue(t *testing.T, reg *prometheus.Registry, name, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no %s sample for %s", name, status)
	return 0
}
