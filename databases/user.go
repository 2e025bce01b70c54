package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, details models.UserDetails) (string, error)
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type userDatabase struct {
	c entityCollection[models.User]
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{c: entityCollection[models.User]{db: db, name: userName, key: "user"}}
}

func (u *userDatabase) FindByID(ctx context.Context, id string) (*models.User, error) {
	return u.c.findByID(ctx, id)
}

func (u *userDatabase) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.c.findOne(ctx, bson.M{u.c.field("email"): strings.ToLower(email)})
}

func (u *userDatabase) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	q := bson.M{}
	if role != "" {
		q[u.c.field("role")] = role
	}
	return u.c.find(ctx, q, options.Find().SetSort(bson.D{{Key: u.c.field("name"), Value: 1}}))
}

func (u *userDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	count, err := u.c.db.Collection(userName).CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (u *userDatabase) InsertOne(ctx context.Context, details models.UserDetails) (string, error) {
	details.Email = strings.ToLower(details.Email)
	return u.c.insert(ctx, details)
}

func (u *userDatabase) Save(ctx context.Context, user *models.User) error {
	return u.c.save(ctx, user.ID, user.Details)
}

func (u *userDatabase) Delete(ctx context.Context, id string) error {
	return u.c.remove(ctx, id)
}
