package testhelpers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Password is the password of every seeded account
const Password = "correct-horse"

// NewSeededStore returns a memory store holding the demo fleet
func NewSeededStore(t *testing.T) (*databases.MemoryStore, *databases.Seeded) {
	t.Helper()
	s := databases.NewMemoryStore(time.Second)
	seeded, err := databases.Seed(context.Background(), s, Password, bcrypt.MinCost)
	require.NoError(t, err)
	return s, seeded
}

// Identity builds the authenticated identity of a seeded user
func Identity(u models.User) models.Identity {
	return models.Identity{UserID: u.ID, Username: u.Details.Username, Role: u.Details.Role, Authenticated: true}
}

// BasicAuth sets basic credentials for a seeded user on r
func BasicAuth(r *http.Request, u models.User) *http.Request {
	r.SetBasicAuth(u.Details.Email, Password)
	return r
}
