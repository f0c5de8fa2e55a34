package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cassiama/LicenseGuard-API/internal/apierr"
	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/repos"
	"github.com/cassiama/LicenseGuard-API/internal/requestdata"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// RegisterInput is what a registration request carries. Email and full name
// are optional.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	FullName string
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*types.UserPublic, error)
	Authenticate(ctx context.Context, username, password string) (*types.UserPublic, error)
	GetMe(ctx context.Context) (*types.UserPublic, error)
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	auth     AuthService
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo, auth AuthService) UserService {
	return &userService{
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
		auth:     auth,
	}
}

func (us *userService) Register(ctx context.Context, in RegisterInput) (*types.UserPublic, error) {
	in.Username = strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(in.Username); n < 4 || n > 100 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "bad_username",
			errors.New("Username must be between 4 and 100 characters."))
	}
	if utf8.RuneCountInString(in.Password) < 4 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "bad_password",
			errors.New("Password must be at least 4 characters."))
	}

	exists, err := us.userRepo.UsernameExists(ctx, nil, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierr.New(http.StatusBadRequest, "username_taken",
			errors.New("A user with this username already registered."))
	}

	hashed, err := us.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &types.User{
		ID:             uuid.New(),
		Username:       in.Username,
		Email:          in.Email,
		FullName:       in.FullName,
		HashedPassword: hashed,
	}
	if err := us.userRepo.Create(ctx, nil, user); err != nil {
		// The unique index is the real guard; the pre-check above only gives
		// the common case a friendlier path.
		if errors.Is(err, repos.ErrUsernameTaken) {
			return nil, apierr.New(http.StatusBadRequest, "username_taken",
				errors.New("A user with this username already registered."))
		}
		return nil, err
	}

	public := user.Public()
	return &public, nil
}

// Authenticate returns the public user for valid credentials, or nil for an
// unknown username or wrong password. Which of the two failed is deliberately
// not distinguished.
func (us *userService) Authenticate(ctx context.Context, username, password string) (*types.UserPublic, error) {
	user, err := us.userRepo.GetByUsername(ctx, nil, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !us.auth.VerifyPassword(password, user.HashedPassword) {
		return nil, nil
	}
	public := user.Public()
	return &public, nil
}

func (us *userService) GetMe(ctx context.Context) (*types.UserPublic, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthenticated",
			errors.New("could not validate user credentials"))
	}
	user, err := us.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthenticated",
			errors.New("could not validate user credentials"))
	}
	public := user.Public()
	return &public, nil
}
