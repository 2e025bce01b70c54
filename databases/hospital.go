package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const hospitalName = "hospitals"

// HospitalDatabase contains the methods to use with the hospital database
type HospitalDatabase interface {
	FindByID(ctx context.Context, id string) (*models.Hospital, error)
	FindAll(ctx context.Context) ([]models.Hospital, error)
	InsertOne(ctx context.Context, details models.HospitalDetails) (string, error)
	Lock(ctx context.Context, id string) (*models.Hospital, error)
	Save(ctx context.Context, hospital *models.Hospital) error
	Delete(ctx context.Context, id string) error
}

type hospitalDatabase struct {
	c entityCollection[models.Hospital]
}

// NewHospitalDatabase initializes a new instance of hospital database with the provided db connection
func NewHospitalDatabase(db DatabaseHelper) HospitalDatabase {
	return &hospitalDatabase{c: entityCollection[models.Hospital]{db: db, name: hospitalName, key: "hospital"}}
}

func (h *hospitalDatabase) FindByID(ctx context.Context, id string) (*models.Hospital, error) {
	return h.c.findByID(ctx, id)
}

func (h *hospitalDatabase) FindAll(ctx context.Context) ([]models.Hospital, error) {
	return h.c.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: h.c.field("name"), Value: 1}}))
}

func (h *hospitalDatabase) InsertOne(ctx context.Context, details models.HospitalDetails) (string, error) {
	return h.c.insert(ctx, details)
}

func (h *hospitalDatabase) Lock(ctx context.Context, id string) (*models.Hospital, error) {
	return h.c.lock(ctx, id)
}

func (h *hospitalDatabase) Save(ctx context.Context, hospital *models.Hospital) error {
	return h.c.save(ctx, hospital.ID, hospital.Details)
}

func (h *hospitalDatabase) Delete(ctx context.Context, id string) error {
	return h.c.remove(ctx, id)
}
