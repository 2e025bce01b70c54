package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to EmergencyStatus
		want     error
	}{
		{"received to dispatched", EmergencyReceived, EmergencyDispatched, nil},
		{"dispatched to en route", EmergencyDispatched, EmergencyEnRoute, nil},
		{"at hospital to closed", EmergencyAtHospital, EmergencyClosed, nil},
		{"received to on scene", EmergencyReceived, EmergencyOnScene, ErrInvalidTransition},
		{"backwards", EmergencyOnScene, EmergencyEnRoute, ErrInvalidTransition},
		{"out of closed", EmergencyClosed, EmergencyReceived, ErrInvalidTransition},
		{"unknown target", EmergencyReceived, EmergencyStatus("LOST"), ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateStatusUpdate(t *testing.T) {
	assert.ErrorIs(t, ValidateStatusUpdate(EmergencyReceived, EmergencyDispatched), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateStatusUpdate(EmergencyReceived, EmergencyOnScene), ErrInvalidTransition)

	for from := EmergencyDispatched; from != EmergencyClosed; {
		next, ok := from.Next()
		assert.True(t, ok)
		assert.NoError(t, ValidateStatusUpdate(from, next), "%s -> %s", from, next)
		from = next
	}
}

func TestEmergencyStatusHelpers(t *testing.T) {
	assert.True(t, EmergencyClosed.Valid())
	assert.True(t, EmergencyClosed.IsTerminal())
	assert.False(t, EmergencyAtHospital.IsTerminal())
	_, ok := EmergencyClosed.Next()
	assert.False(t, ok)
	assert.True(t, EmergencyReceived.IsActive())
	assert.False(t, EmergencyAtHospital.IsActive())
}
