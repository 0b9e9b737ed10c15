package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lifelink-health/registry/pkg/common/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a donor or recipient account. ADMIN accounts are only
// created through Bootstrap, never through open registration.
func (s *Service) Register(ctx context.Context, req models.RegisterUserRequest) (models.User, error) {
	role := req.Role
	if role == "" {
		role = models.RoleDonor
	}
	if role != models.RoleDonor && role != models.RoleRecipient {
		return models.User{}, fmt.Errorf("role '%s': %w", role, ErrInvalidRole)
	}
	return s.createUser(ctx, req, role)
}

// Bootstrap creates the first admin account on an empty registry.
func (s *Service) Bootstrap(ctx context.Context, email, password, name string) (models.User, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	if count > 0 {
		return models.User{}, errors.New("registry already bootstrapped")
	}
	return s.createUser(ctx, models.RegisterUserRequest{
		Email:    email,
		Password: password,
		Name:     name,
	}, models.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, req models.RegisterUserRequest, role models.Role) (models.User, error) {
	if strings.TrimSpace(req.Email) == "" {
		return models.User{}, fmt.Errorf("email required")
	}
	if req.Password == "" {
		return models.User{}, fmt.Errorf("password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	return s.repo.CreateUser(ctx, CreateUserInput{
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: string(hash),
		BloodGroup:   req.BloodGroup,
		Age:          req.Age,
		Gender:       req.Gender,
		Contact:      req.Contact,
		Metadata:     req.Metadata,
	})
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	hash, err := s.repo.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) ListDonors(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsersByRole(ctx, models.RoleDonor)
}

func (s *Service) ListMembers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListMembers(ctx)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteUser(ctx, id)
}
