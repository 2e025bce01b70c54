package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/databases/mocks"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// fakeSession records the transaction calls made by WithTx
type fakeSession struct {
	mongo.Session
	commitErr error

	started, committed, aborted, ended bool
}

func (s *fakeSession) StartTransaction(...*options.TransactionOptions) error {
	s.started = true
	return nil
}

func (s *fakeSession) CommitTransaction(context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

func (s *fakeSession) AbortTransaction(context.Context) error {
	s.aborted = true
	return nil
}

func (s *fakeSession) EndSession(context.Context) { s.ended = true }

func newMongoStore(sess mongo.Session, dbHelper databases.DatabaseHelper) *databases.MongoStore {
	client := &mocks.ClientHelper{}
	client.On("StartSession").Return(sess, nil)
	return databases.NewMongoStore(client, dbHelper, time.Second)
}

func TestMongoStore_WithTxWriteConflictAborts(t *testing.T) {
	oid := primitive.NewObjectID()

	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	srHelper.On("Decode", mock.Anything).Return(mongo.CommandError{Code: 112, Name: "WriteConflict"})
	collectionHelper.On("FindOneAndUpdate", mock.Anything, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"__v": 1}}).Return(srHelper)
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	sess := &fakeSession{}
	store := newMongoStore(sess, dbHelper)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx databases.Tx) error {
		_, err := tx.LockEmergency(ctx, oid.Hex())
		return err
	})

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.True(t, sess.started)
	assert.True(t, sess.aborted)
	assert.False(t, sess.committed)
	assert.True(t, sess.ended)
}

func TestMongoStore_WithTxCommitDeadline(t *testing.T) {
	sess := &fakeSession{commitErr: context.DeadlineExceeded}
	store := newMongoStore(sess, &mocks.DatabaseHelper{})

	err := store.WithTx(context.Background(), func(context.Context, databases.Tx) error { return nil })

	assert.ErrorIs(t, err, models.ErrUnavailable)
	assert.False(t, sess.aborted)
	assert.True(t, sess.ended)
}

func TestMongoStore_WithTxCommits(t *testing.T) {
	sess := &fakeSession{}
	store := newMongoStore(sess, &mocks.DatabaseHelper{})

	require.NoError(t, store.WithTx(context.Background(), func(context.Context, databases.Tx) error { return nil }))
	assert.True(t, sess.committed)
	assert.True(t, sess.ended)
}

func TestMongoStore_WithTxRollsBackOnCallerError(t *testing.T) {
	sess := &fakeSession{}
	store := newMongoStore(sess, &mocks.DatabaseHelper{})

	err := store.WithTx(context.Background(), func(context.Context, databases.Tx) error {
		return models.ErrInvalidState
	})

	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.True(t, sess.aborted)
	assert.False(t, sess.committed)
}

func TestMongoStore_WithTxNoSession(t *testing.T) {
	client := &mocks.ClientHelper{}
	client.On("StartSession").Return(nil, errors.New("no replica set"))
	store := databases.NewMongoStore(client, &mocks.DatabaseHelper{}, time.Second)

	called := false
	err := store.WithTx(context.Background(), func(context.Context, databases.Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, models.ErrUnavailable)
	assert.False(t, called)
}

func TestMongoStore_DeleteAmbulanceBlanksCallReference(t *testing.T) {
	oid := primitive.NewObjectID()

	dbHelper := &mocks.DatabaseHelper{}
	ambulances := &mocks.CollectionHelper{}
	emergencies := &mocks.CollectionHelper{}

	ambulances.On("DeleteOne", mock.Anything, bson.M{"_id": oid}).Return(&mongo.DeleteResult{DeletedCount: 1}, nil)
	emergencies.On("UpdateMany", mock.Anything,
		bson.M{"emergency.assignedAmbulanceID": oid.Hex()},
		bson.M{"$set": bson.M{"emergency.assignedAmbulanceID": ""}, "$inc": bson.M{"__v": 1}},
	).Return(&mongo.UpdateResult{ModifiedCount: 2}, nil)
	dbHelper.On("Collection", "ambulances").Return(ambulances)
	dbHelper.On("Collection", "emergencies").Return(emergencies)

	sess := &fakeSession{}
	store := newMongoStore(sess, dbHelper)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx databases.Tx) error {
		return tx.DeleteAmbulance(ctx, oid.Hex())
	})

	require.NoError(t, err)
	assert.True(t, sess.committed)
	emergencies.AssertExpectations(t)
}

func TestMongoStore_CreateUserDuplicateEmail(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("CountDocuments", context.Background(), bson.M{"user.email": "ann@example.com"}).Return(int64(1), nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	store := databases.NewMongoStore(&mocks.ClientHelper{}, dbHelper, time.Second)
	err := store.CreateUser(context.Background(), &models.User{Details: models.UserDetails{Email: "Ann@Example.com"}})

	assert.ErrorIs(t, err, models.ErrConflict)
	collectionHelper.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestMongoStore_CreateEmergency(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("InsertOne", context.Background(), mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	store := databases.NewMongoStore(&mocks.ClientHelper{}, dbHelper, time.Second)
	call := &models.EmergencyCall{Details: models.EmergencyDetails{CallCode: "E55"}}

	require.NoError(t, store.CreateEmergency(context.Background(), call))
	_, err := primitive.ObjectIDFromHex(call.ID)
	assert.NoError(t, err)
}
