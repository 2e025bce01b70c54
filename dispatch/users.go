package dispatch

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func requireAdmin(requester models.Identity) error {
	if !requester.HasRole(models.RoleAdmin) {
		return fmt.Errorf("%w: only admins can manage accounts", models.ErrForbidden)
	}
	return nil
}

// ListUsers returns every account, or only those with role when it is set
func (c *Coordinator) ListUsers(ctx context.Context, role models.Role, requester models.Identity) ([]models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
	return c.store.ListUsers(ctx, role)
}

// GetUser returns one account
func (c *Coordinator) GetUser(ctx context.Context, userID string, requester models.Identity) (*models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	return c.store.GetUser(ctx, userID)
}

// CreateUser opens an account. The password is stored as a bcrypt hash.
func (c *Coordinator) CreateUser(ctx context.Context, in models.UserInput, requester models.Identity) (*models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", models.ErrInvalidInput, in.Email)
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrInvalidInput)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", models.ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), c.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	now := c.now().UTC()
	user := models.User{Details: models.UserDetails{
		Email:       in.Email,
		Username:    strings.TrimSpace(in.Username),
		Name:        in.Name,
		Password:    string(hash),
		PhoneNumber: in.PhoneNumber,
		Role:        in.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	if in.Role == models.RoleParamedic {
		available := true
		user.Details.IsAvailable = &available
	}
	if err := c.store.CreateUser(ctx, &user); err != nil {
		return nil, err
	}
	zap.S().Infow("account created", "userId", user.ID, "role", user.Details.Role, "by", requester.UserID)
	return &user, nil
}

// UpdateUser edits an account. Nil fields are left untouched.
func (c *Coordinator) UpdateUser(ctx context.Context, userID string, update models.UserUpdate, requester models.Identity) (*models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.Username != nil {
		if strings.TrimSpace(*update.Username) == "" {
			return nil, fmt.Errorf("%w: username must not be blank", models.ErrInvalidInput)
		}
		user.Details.Username = strings.TrimSpace(*update.Username)
	}
	if update.Name != nil {
		user.Details.Name = *update.Name
	}
	if update.PhoneNumber != nil {
		user.Details.PhoneNumber = *update.PhoneNumber
	}
	if update.IsAvailable != nil {
		if user.Details.Role != models.RoleParamedic {
			return nil, fmt.Errorf("%w: only paramedics have an availability flag", models.ErrInvalidInput)
		}
		available := *update.IsAvailable
		user.Details.IsAvailable = &available
	}
	if update.Password != nil {
		if *update.Password == "" {
			return nil, fmt.Errorf("%w: password must not be empty", models.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), c.passwordCost)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		user.Details.Password = string(hash)
	}
	user.Details.UpdatedAt = c.now().UTC()
	if err := c.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	zap.S().Infow("account updated", "userId", user.ID, "by", requester.UserID)
	return user, nil
}

// DeleteUser closes an account. Ambulances and calls that referenced it keep
// their rows with the reference blanked. Admins cannot delete themselves.
func (c *Coordinator) DeleteUser(ctx context.Context, userID string, requester models.Identity) error {
	if err := requireAdmin(requester); err != nil {
		return err
	}
	if userID == requester.UserID {
		return fmt.Errorf("%w: you cannot delete your own account", models.ErrInvalidInput)
	}
	err := c.store.WithTx(ctx, func(ctx context.Context, tx databases.Tx) error {
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	zap.S().Infow("account deleted", "userId", userID, "by", requester.UserID)
	return nil
}
