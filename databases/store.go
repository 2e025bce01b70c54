package databases

import (
	"context"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// EmergencyFilter narrows ListEmergencies. Zero values match everything.
type EmergencyFilter struct {
	Statuses    []models.EmergencyStatus
	ParamedicID string
	Limit       int64
}

// TxFunc is run inside a store transaction. Returning an error rolls back
// every write staged through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the entity store consumed by the dispatch core. Reads outside WithTx
// see only committed state.
type Store interface {
	GetEmergency(ctx context.Context, id string) (*models.EmergencyCall, error)
	ListEmergencies(ctx context.Context, filter EmergencyFilter) ([]models.EmergencyCall, error)
	CreateEmergency(ctx context.Context, call *models.EmergencyCall) error

	GetAmbulance(ctx context.Context, id string) (*models.Ambulance, error)
	ListAmbulances(ctx context.Context) ([]models.Ambulance, error)
	// CreateAmbulance fails with ErrConflict when the unit number is taken
	CreateAmbulance(ctx context.Context, ambulance *models.Ambulance) error

	GetHospital(ctx context.Context, id string) (*models.Hospital, error)
	ListHospitals(ctx context.Context) ([]models.Hospital, error)
	CreateHospital(ctx context.Context, hospital *models.Hospital) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	// CreateUser fails with ErrConflict when the email is taken
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error

	// WithTx runs fn in a transaction. Row locks taken through tx are held
	// until fn returns; a lock that cannot be granted within the configured
	// wait fails with ErrUnavailable or ErrConflict.
	WithTx(ctx context.Context, fn TxFunc) error

	Close(ctx context.Context) error
}

// Tx is the transactional view of the store. Lock* takes an exclusive row lock
// and returns the current committed row. Save* is only valid for rows locked
// in the same transaction.
type Tx interface {
	LockEmergency(ctx context.Context, id string) (*models.EmergencyCall, error)
	LockAmbulance(ctx context.Context, id string) (*models.Ambulance, error)
	LockHospital(ctx context.Context, id string) (*models.Hospital, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetHospital(ctx context.Context, id string) (*models.Hospital, error)

	SaveEmergency(ctx context.Context, call *models.EmergencyCall) error
	SaveAmbulance(ctx context.Context, ambulance *models.Ambulance) error
	SaveHospital(ctx context.Context, hospital *models.Hospital) error

	// Delete* remove a row and blank every weak reference to it; nothing
	// cascades. DeleteAmbulance and DeleteHospital need the row lock.
	DeleteAmbulance(ctx context.Context, id string) error
	DeleteHospital(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}
