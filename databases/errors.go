package databases

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// mongo server code for a write conflict inside a transaction
const writeConflictCode = 112

var kinds = []error{
	models.ErrNotFound, models.ErrConflict, models.ErrUnavailable,
	models.ErrInvalidInput, models.ErrInvalidState, models.ErrInvalidTransition, models.ErrForbidden,
}

// translateError maps driver errors onto the error kinds used by the dispatch core
func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError")) {
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return err
}
