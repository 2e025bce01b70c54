package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const emergencyName = "emergencies"

// EmergencyDatabase contains the methods to use with the emergency database
type EmergencyDatabase interface {
	FindByID(ctx context.Context, id string) (*models.EmergencyCall, error)
	Find(ctx context.Context, filter EmergencyFilter) ([]models.EmergencyCall, error)
	InsertOne(ctx context.Context, details models.EmergencyDetails) (string, error)
	Lock(ctx context.Context, id string) (*models.EmergencyCall, error)
	Save(ctx context.Context, call *models.EmergencyCall) error
	ClearReference(ctx context.Context, field, id string) error
}

type emergencyDatabase struct {
	c entityCollection[models.EmergencyCall]
}

// NewEmergencyDatabase initializes a new instance of emergency database with the provided db connection
func NewEmergencyDatabase(db DatabaseHelper) EmergencyDatabase {
	return &emergencyDatabase{c: entityCollection[models.EmergencyCall]{db: db, name: emergencyName, key: "emergency"}}
}

func (e *emergencyDatabase) FindByID(ctx context.Context, id string) (*models.EmergencyCall, error) {
	return e.c.findByID(ctx, id)
}

func (e *emergencyDatabase) Find(ctx context.Context, filter EmergencyFilter) ([]models.EmergencyCall, error) {
	q := bson.M{}
	if len(filter.Statuses) > 0 {
		q[e.c.field("status")] = bson.M{"$in": filter.Statuses}
	}
	if filter.ParamedicID != "" {
		q[e.c.field("assignedParamedicID")] = filter.ParamedicID
	}
	opts := options.Find().SetSort(bson.D{{Key: e.c.field("receivedAt"), Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	return e.c.find(ctx, q, opts)
}

func (e *emergencyDatabase) InsertOne(ctx context.Context, details models.EmergencyDetails) (string, error) {
	return e.c.insert(ctx, details)
}

func (e *emergencyDatabase) Lock(ctx context.Context, id string) (*models.EmergencyCall, error) {
	return e.c.lock(ctx, id)
}

func (e *emergencyDatabase) Save(ctx context.Context, call *models.EmergencyCall) error {
	return e.c.save(ctx, call.ID, call.Details)
}

// ClearReference blanks field (assignedAmbulanceID, assignedParamedicID or
// dispatcherID) on every call pointing at id
func (e *emergencyDatabase) ClearReference(ctx context.Context, field, id string) error {
	return e.c.clearReference(ctx, field, id)
}
