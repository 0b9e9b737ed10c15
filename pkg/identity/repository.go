package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lifelink-health/registry/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex"`
	Name         string
	Role         string `gorm:"index"`
	PasswordHash string
	BloodGroup   string
	Age          int
	Gender       string
	Contact      string
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&UserModel{})
}

type CreateUserInput struct {
	Email        string
	Name         string
	Role         models.Role
	PasswordHash string
	BloodGroup   models.BloodGroup
	Age          int
	Gender       string
	Contact      string
	Metadata     map[string]interface{}
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(input.Email))

	var existing int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", normalizedEmail).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrEmailAlreadyExists
	}

	user := UserModel{
		ID:           uuid.New(),
		Email:        normalizedEmail,
		Name:         input.Name,
		Role:         string(input.Role),
		PasswordHash: input.PasswordHash,
		BloodGroup:   string(input.BloodGroup),
		Age:          input.Age,
		Gender:       input.Gender,
		Contact:      input.Contact,
		Metadata:     datatypes.JSONMap(input.Metadata),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return models.User{}, err
	}

	return mapUserModel(user), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func (r *Repository) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Select("password_hash").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (r *Repository) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var records []UserModel
	err := r.db.WithContext(ctx).Where("role = ?", string(role)).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return mapUserModels(records), nil
}

// ListMembers returns every non-admin account for the admin user screen.
func (r *Repository) ListMembers(ctx context.Context) ([]models.User, error) {
	var records []UserModel
	err := r.db.WithContext(ctx).Where("role <> ?", string(models.RoleAdmin)).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return mapUserModels(records), nil
}

// DeleteUser removes an account. Donations, requests, and matches owned by
// the user are removed by the schema's cascading foreign keys.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func mapUserModel(user UserModel) models.User {
	return models.User{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       models.Role(user.Role),
		BloodGroup: models.BloodGroup(user.BloodGroup),
		Age:        user.Age,
		Gender:     user.Gender,
		Contact:    user.Contact,
		Metadata:   map[string]interface{}(user.Metadata),
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func mapUserModels(records []UserModel) []models.User {
	users := make([]models.User, 0, len(records))
	for _, record := range records {
		users = append(users, mapUserModel(record))
	}
	return users
}
