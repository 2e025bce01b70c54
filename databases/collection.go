package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// entityCollection is the shared access path for collections that store one
// nested details document under key, plus _id and __v.
type entityCollection[T any] struct {
	db   DatabaseHelper
	name string
	key  string
}

// objectID parses a hex id. An id that can never exist is reported as not found.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", models.ErrNotFound, id)
	}
	return oid, nil
}

func (c entityCollection[T]) field(name string) string {
	return c.key + "." + name
}

func (c entityCollection[T]) findByID(ctx context.Context, id string) (*T, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return c.findOne(ctx, bson.M{"_id": oid})
}

func (c entityCollection[T]) findOne(ctx context.Context, filter interface{}) (*T, error) {
	var v T
	if err := c.db.Collection(c.name).FindOne(ctx, filter).Decode(&v); err != nil {
		return nil, translateError(err)
	}
	return &v, nil
}

func (c entityCollection[T]) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := c.db.Collection(c.name).Find(ctx, filter, opts...)
	if err != nil {
		return nil, translateError(err)
	}
	var list []T
	if err := cursor.Decode(&list); err != nil {
		return nil, translateError(err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// insert stores details under a fresh ObjectID and returns its hex form
func (c entityCollection[T]) insert(ctx context.Context, details interface{}) (string, error) {
	oid := primitive.NewObjectID()
	_, err := c.db.Collection(c.name).InsertOne(ctx, bson.M{"_id": oid, c.key: details, "__v": 0})
	if err != nil {
		return "", translateError(err)
	}
	return oid.Hex(), nil
}

// lock bumps __v so that the document joins the caller's transaction write set.
// A concurrent transaction touching the same document fails with a write conflict.
func (c entityCollection[T]) lock(ctx context.Context, id string) (*T, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var v T
	err = c.db.Collection(c.name).FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"__v": 1}}, opts).Decode(&v)
	if err != nil {
		return nil, translateError(err)
	}
	return &v, nil
}

func (c entityCollection[T]) save(ctx context.Context, id string, details interface{}) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.db.Collection(c.name).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{c.key: details}})
	if err != nil {
		return translateError(err)
	}
	if res != nil && res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %s", models.ErrNotFound, c.name, id)
	}
	return nil
}

// remove deletes one document by id
func (c entityCollection[T]) remove(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.db.Collection(c.name).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateError(err)
	}
	if res != nil && res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s %s", models.ErrNotFound, c.name, id)
	}
	return nil
}

// clearReference blanks a weak reference field on every document pointing at id
func (c entityCollection[T]) clearReference(ctx context.Context, field, id string) error {
	_, err := c.db.Collection(c.name).UpdateMany(ctx,
		bson.M{c.field(field): id},
		bson.M{"$set": bson.M{c.field(field): ""}, "$inc": bson.M{"__v": 1}},
	)
	return translateError(err)
}

func (c entityCollection[T]) count(ctx context.Context, filter interface{}) (int64, error) {
	n, err := c.db.Collection(c.name).CountDocuments(ctx, filter)
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}
