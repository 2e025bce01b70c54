package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/databases/mocks"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestEmergencyDatabase_Lock(t *testing.T) {
	oid := primitive.NewObjectID()
	missing := primitive.NewObjectID()

	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelperMissing := &mocks.SingleResultHelper{}
	srHelperCorrect := &mocks.SingleResultHelper{}

	srHelperMissing.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.EmergencyCall)
		arg.ID = oid.Hex()
		arg.Version = 3
	})

	bump := bson.M{"$inc": bson.M{"__v": 1}}
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": missing}, bump).Return(srHelperMissing)
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": oid}, bump).Return(srHelperCorrect)
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	emergencyDba := databases.NewEmergencyDatabase(dbHelper)

	call, err := emergencyDba.Lock(context.Background(), missing.Hex())
	assert.Nil(t, call)
	assert.ErrorIs(t, err, models.ErrNotFound)

	call, err = emergencyDba.Lock(context.Background(), oid.Hex())
	assert.NoError(t, err)
	assert.Equal(t, oid.Hex(), call.ID)
	assert.Equal(t, int32(3), call.Version)
}

func TestEmergencyDatabase_FindFiltersByStatusAndParamedic(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil)

	filter := bson.M{
		"emergency.status":              bson.M{"$in": []models.EmergencyStatus{models.EmergencyDispatched}},
		"emergency.assignedParamedicID": "p1",
	}
	collectionHelper.On("Find", context.Background(), filter).Return(cursorHelper, nil)
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	emergencyDba := databases.NewEmergencyDatabase(dbHelper)
	calls, err := emergencyDba.Find(context.Background(), databases.EmergencyFilter{
		Statuses:    []models.EmergencyStatus{models.EmergencyDispatched},
		ParamedicID: "p1",
	})

	assert.NoError(t, err)
	assert.NotNil(t, calls)
	assert.Empty(t, calls)
}

func TestEmergencyDatabase_SaveWriteConflict(t *testing.T) {
	oid := primitive.NewObjectID()

	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	conflict := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": oid}, mock.Anything).Return(nil, conflict)
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	emergencyDba := databases.NewEmergencyDatabase(dbHelper)
	err := emergencyDba.Save(context.Background(), &models.EmergencyCall{ID: oid.Hex()})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestEmergencyDatabase_SaveMissing(t *testing.T) {
	oid := primitive.NewObjectID()

	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": oid}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	collectionHelper.On("UpdateOne", context.Background(), mock.Anything, mock.Anything).
		Return(nil, errors.New("unexpected filter"))
	dbHelper.On("Collection", "emergencies").Return(collectionHelper)

	emergencyDba := databases.NewEmergencyDatabase(dbHelper)
	err := emergencyDba.Save(context.Background(), &models.EmergencyCall{ID: oid.Hex()})

	assert.ErrorIs(t, err, models.ErrNotFound)
}
