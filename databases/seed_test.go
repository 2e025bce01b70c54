package databases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Second)

	seeded, err := Seed(ctx, s, "hunter22", bcrypt.MinCost)
	require.NoError(t, err)

	assert.Len(t, seeded.Paramedics, 2)
	assert.Len(t, seeded.Ambulances, 3)
	assert.Len(t, seeded.Hospitals, 2)
	assert.Equal(t, seeded.Paramedics[0].ID, seeded.Ambulances[0].Details.AssignedParamedicID)
	for _, a := range seeded.Ambulances {
		assert.NoError(t, a.CheckInvariant())
	}

	u, err := s.FindUserByEmail(ctx, "DISPATCHER@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDispatcher, u.Details.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Details.Password), []byte("hunter22")))

	active, err := s.ListEmergencies(ctx, EmergencyFilter{Statuses: models.ActiveEmergencyStatuses})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, seeded.Emergency.ID, active[0].ID)

	// seeding twice trips the unique email check
	_, err = Seed(ctx, s, "hunter22", bcrypt.MinCost)
	assert.True(t, errors.Is(err, models.ErrConflict))
}
