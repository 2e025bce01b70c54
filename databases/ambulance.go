package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const ambulanceName = "ambulances"

// AmbulanceDatabase contains the methods to use with the ambulance database
type AmbulanceDatabase interface {
	FindByID(ctx context.Context, id string) (*models.Ambulance, error)
	FindAll(ctx context.Context) ([]models.Ambulance, error)
	InsertOne(ctx context.Context, details models.AmbulanceDetails) (string, error)
	Lock(ctx context.Context, id string) (*models.Ambulance, error)
	Save(ctx context.Context, ambulance *models.Ambulance) error
	Delete(ctx context.Context, id string) error
	CountByUnit(ctx context.Context, unitNumber string) (int64, error)
	ClearReference(ctx context.Context, field, id string) error
}

type ambulanceDatabase struct {
	c entityCollection[models.Ambulance]
}

// NewAmbulanceDatabase initializes a new instance of ambulance database with the provided db connection
func NewAmbulanceDatabase(db DatabaseHelper) AmbulanceDatabase {
	return &ambulanceDatabase{c: entityCollection[models.Ambulance]{db: db, name: ambulanceName, key: "ambulance"}}
}

func (a *ambulanceDatabase) FindByID(ctx context.Context, id string) (*models.Ambulance, error) {
	return a.c.findByID(ctx, id)
}

func (a *ambulanceDatabase) FindAll(ctx context.Context) ([]models.Ambulance, error) {
	return a.c.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: a.c.field("unitNumber"), Value: 1}}))
}

func (a *ambulanceDatabase) InsertOne(ctx context.Context, details models.AmbulanceDetails) (string, error) {
	return a.c.insert(ctx, details)
}

func (a *ambulanceDatabase) Lock(ctx context.Context, id string) (*models.Ambulance, error) {
	return a.c.lock(ctx, id)
}

func (a *ambulanceDatabase) Save(ctx context.Context, ambulance *models.Ambulance) error {
	return a.c.save(ctx, ambulance.ID, ambulance.Details)
}

func (a *ambulanceDatabase) Delete(ctx context.Context, id string) error {
	return a.c.remove(ctx, id)
}

func (a *ambulanceDatabase) CountByUnit(ctx context.Context, unitNumber string) (int64, error) {
	return a.c.count(ctx, bson.M{a.c.field("unitNumber"): unitNumber})
}

// ClearReference blanks field (assignedParamedicID) wherever it points at id
func (a *ambulanceDatabase) ClearReference(ctx context.Context, field, id string) error {
	return a.c.clearReference(ctx, field, id)
}
