package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/tasktrack/tasktrack-go/internal/crypto"
	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/model"
	"github.com/tasktrack/tasktrack-go/internal/repository"
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email is not a valid address")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooLong  = crypto.ErrPasswordTooLong
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("incorrect password")
)

// UserService handles registration, authentication and account removal.
type UserService struct {
	db     *database.DB
	users  *repository.Repository[model.User]
	tasks  *repository.Repository[model.Task]
	hasher *crypto.Hasher
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB, hasher *crypto.Hasher) *UserService {
	return &UserService{
		db:     db,
		users:  repository.NewUserRepository(db.Dialect()),
		tasks:  repository.NewTaskRepository(db.Dialect()),
		hasher: hasher,
	}
}

// Register creates a new user account and returns its public projection.
func (s *UserService) Register(ctx context.Context, req model.CreateUserRequest) (model.UserResponse, error) {
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return model.UserResponse{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.UserResponse{}, err
	}

	var user *model.User
	err = s.db.Session(ctx, func(q database.Querier) error {
		existing, err := s.users.GetOne(ctx, q, repository.Filter{"email": req.Email})
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateEmail
		}

		user, err = s.users.Create(ctx, q, &model.User{Email: req.Email, HashedPassword: hash})
		return err
	})
	if database.IsUniqueViolation(err) {
		return model.UserResponse{}, ErrDuplicateEmail
	}
	if err != nil {
		return model.UserResponse{}, err
	}

	return user.Response(), nil
}

// Authenticate returns the user owning email if password matches.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var user *model.User
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		user, err = s.users.GetOne(ctx, q, repository.Filter{"email": email})
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// GetUser retrieves a user by ID and returns safe user data.
func (s *UserService) GetUser(ctx context.Context, userID int64) (model.UserResponse, error) {
	var user *model.User
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		user, err = s.users.GetOne(ctx, q, repository.Filter{"id": userID})
		return err
	})
	if err != nil {
		return model.UserResponse{}, err
	}
	if user == nil {
		return model.UserResponse{}, ErrUserNotFound
	}
	return user.Response(), nil
}

// DeleteUser removes a user together with every task it owns.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	return s.db.Session(ctx, func(q database.Querier) error {
		if _, err := s.tasks.DeleteAll(ctx, q, repository.Filter{"owner_id": userID}); err != nil {
			return fmt.Errorf("deleting tasks of user %d: %w", userID, err)
		}

		user, err := s.users.Delete(ctx, q, repository.Filter{"id": userID})
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		return nil
	})
}

func validateCredentials(email, password string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) > crypto.MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
