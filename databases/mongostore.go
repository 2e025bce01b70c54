package databases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// MongoStore implements Store on a mongo replica set. Transactions use
// snapshot reads with majority writes; row locks are __v bumps.
type MongoStore struct {
	client      ClientHelper
	emergencies EmergencyDatabase
	ambulances  AmbulanceDatabase
	hospitals   HospitalDatabase
	users       UserDatabase
	lockWait    time.Duration
}

// NewMongoStore builds a store over db. lockWait bounds each transaction.
func NewMongoStore(client ClientHelper, db DatabaseHelper, lockWait time.Duration) *MongoStore {
	return &MongoStore{
		client:      client,
		emergencies: NewEmergencyDatabase(db),
		ambulances:  NewAmbulanceDatabase(db),
		hospitals:   NewHospitalDatabase(db),
		users:       NewUserDatabase(db),
		lockWait:    lockWait,
	}
}

func (s *MongoStore) GetEmergency(ctx context.Context, id string) (*models.EmergencyCall, error) {
	return s.emergencies.FindByID(ctx, id)
}

func (s *MongoStore) ListEmergencies(ctx context.Context, filter EmergencyFilter) ([]models.EmergencyCall, error) {
	return s.emergencies.Find(ctx, filter)
}

func (s *MongoStore) CreateEmergency(ctx context.Context, call *models.EmergencyCall) error {
	id, err := s.emergencies.InsertOne(ctx, call.Details)
	if err != nil {
		return err
	}
	call.ID = id
	return nil
}

func (s *MongoStore) GetAmbulance(ctx context.Context, id string) (*models.Ambulance, error) {
	return s.ambulances.FindByID(ctx, id)
}

func (s *MongoStore) ListAmbulances(ctx context.Context) ([]models.Ambulance, error) {
	return s.ambulances.FindAll(ctx)
}

func (s *MongoStore) CreateAmbulance(ctx context.Context, ambulance *models.Ambulance) error {
	n, err := s.ambulances.CountByUnit(ctx, ambulance.Details.UnitNumber)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: unit %s already exists", models.ErrConflict, ambulance.Details.UnitNumber)
	}
	id, err := s.ambulances.InsertOne(ctx, ambulance.Details)
	if err != nil {
		return err
	}
	ambulance.ID = id
	return nil
}

func (s *MongoStore) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	return s.hospitals.FindByID(ctx, id)
}

func (s *MongoStore) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	return s.hospitals.FindAll(ctx)
}

func (s *MongoStore) CreateHospital(ctx context.Context, hospital *models.Hospital) error {
	id, err := s.hospitals.InsertOne(ctx, hospital.Details)
	if err != nil {
		return err
	}
	hospital.ID = id
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *MongoStore) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	return s.users.FindByRole(ctx, role)
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	email := strings.ToLower(user.Details.Email)
	n, err := s.users.CountDocuments(ctx, bson.M{"user.email": email})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: email %s already registered", models.ErrConflict, email)
	}
	id, err := s.users.InsertOne(ctx, user.Details)
	if err != nil {
		return err
	}
	user.ID = id
	user.Details.Email = email
	return nil
}

func (s *MongoStore) SaveUser(ctx context.Context, user *models.User) error {
	return s.users.Save(ctx, user)
}

// WithTx runs fn inside a mongo transaction. Lock contention surfaces as a
// write conflict which is reported as ErrConflict; exceeding lockWait is
// reported as ErrUnavailable.
func (s *MongoStore) WithTx(ctx context.Context, fn TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %v", models.ErrUnavailable, err)
	}
	defer sess.EndSession(context.Background())

	txCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	err = mongo.WithSession(txCtx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return err
		}
		if err := fn(sc, &mongoTx{store: s}); err != nil {
			if abortErr := sess.AbortTransaction(context.Background()); abortErr != nil {
				zap.S().Warnw("failed to abort transaction", "error", abortErr)
			}
			return err
		}
		return sess.CommitTransaction(sc)
	})
	return translateError(err)
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	store *MongoStore
}

func (t *mongoTx) LockEmergency(ctx context.Context, id string) (*models.EmergencyCall, error) {
	return t.store.emergencies.Lock(ctx, id)
}

func (t *mongoTx) LockAmbulance(ctx context.Context, id string) (*models.Ambulance, error) {
	return t.store.ambulances.Lock(ctx, id)
}

func (t *mongoTx) LockHospital(ctx context.Context, id string) (*models.Hospital, error) {
	return t.store.hospitals.Lock(ctx, id)
}

func (t *mongoTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	return t.store.users.FindByID(ctx, id)
}

func (t *mongoTx) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	return t.store.hospitals.FindByID(ctx, id)
}

func (t *mongoTx) SaveEmergency(ctx context.Context, call *models.EmergencyCall) error {
	return t.store.emergencies.Save(ctx, call)
}

func (t *mongoTx) SaveAmbulance(ctx context.Context, ambulance *models.Ambulance) error {
	return t.store.ambulances.Save(ctx, ambulance)
}

func (t *mongoTx) SaveHospital(ctx context.Context, hospital *models.Hospital) error {
	return t.store.hospitals.Save(ctx, hospital)
}

func (t *mongoTx) DeleteAmbulance(ctx context.Context, id string) error {
	if err := t.store.ambulances.Delete(ctx, id); err != nil {
		return err
	}
	return t.store.emergencies.ClearReference(ctx, "assignedAmbulanceID", id)
}

func (t *mongoTx) DeleteHospital(ctx context.Context, id string) error {
	return t.store.hospitals.Delete(ctx, id)
}

func (t *mongoTx) DeleteUser(ctx context.Context, id string) error {
	if err := t.store.users.Delete(ctx, id); err != nil {
		return err
	}
	if err := t.store.ambulances.ClearReference(ctx, "assignedParamedicID", id); err != nil {
		return err
	}
	for _, field := range []string{"assignedParamedicID", "dispatcherID"} {
		if err := t.store.emergencies.ClearReference(ctx, field, id); err != nil {
			return err
		}
	}
	return nil
}
