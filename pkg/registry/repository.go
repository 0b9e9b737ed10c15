package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lifelink-health/registry/pkg/common/models"
	"github.com/lifelink-health/registry/pkg/identity"
	"gorm.io/gorm"
)

var (
	ErrDonationNotFound = errors.New("donation not found")
	ErrRequestNotFound  = errors.New("organ request not found")

	// ErrAlreadyAllocated reports that the donation or the request was
	// transitioned by a competing allocation between suggestion and approval.
	ErrAlreadyAllocated = errors.New("donation or request already allocated")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type DonationModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganType  string    `gorm:"index:idx_donations_availability"`
	BloodGroup string
	DonorID    uuid.UUID `gorm:"type:uuid;index"`
	Status     string    `gorm:"index:idx_donations_availability"`
	CreatedAt  time.Time

	Donor identity.UserModel `gorm:"foreignKey:DonorID;constraint:OnDelete:CASCADE"`
}

func (DonationModel) TableName() string {
	return "donations"
}

type RequestModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID `gorm:"type:uuid;index"`
	OrganType   string
	BloodGroup  string
	Urgency     string
	Status      string `gorm:"index"`
	Note        string
	CreatedAt   time.Time

	Recipient identity.UserModel `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
}

func (RequestModel) TableName() string {
	return "requests"
}

// MatchModel rows are written exactly once, inside the allocation
// transaction. The unique indexes on donation and request back the
// one-match-per-donation and one-match-per-request invariants at the schema
// level on top of the guarded updates.
type MatchModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DonorID     uuid.UUID `gorm:"type:uuid;index"`
	RecipientID uuid.UUID `gorm:"type:uuid;index"`
	DonationID  uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	RequestID   uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	OrganType   string
	Status      string
	CreatedAt   time.Time

	Donation DonationModel `gorm:"foreignKey:DonationID;constraint:OnDelete:CASCADE"`
	Request  RequestModel  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (MatchModel) TableName() string {
	return "matches"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&DonationModel{}, &RequestModel{}, &MatchModel{})
}

func (r *Repository) CreateDonation(ctx context.Context, donation models.Donation) (models.Donation, error) {
	record := DonationModel{
		ID:         uuid.New(),
		OrganType:  string(donation.OrganType),
		BloodGroup: string(donation.BloodGroup),
		DonorID:    donation.DonorID,
		Status:     string(models.DonationAvailable),
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.Donation{}, err
	}
	return mapDonationModel(record), nil
}

func (r *Repository) GetDonation(ctx context.Context, id uuid.UUID) (models.Donation, error) {
	var record DonationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Donation{}, ErrDonationNotFound
	}
	if err != nil {
		return models.Donation{}, err
	}
	return mapDonationModel(record), nil
}

// ListAvailable returns AVAILABLE donations, optionally filtered, oldest
// first. Ordering is part of the suggestion contract: for a fixed storage
// state the candidate list is deterministic.
func (r *Repository) ListAvailable(ctx context.Context, organType models.OrganType, bloodGroup models.BloodGroup) ([]models.Donation, error) {
	query := r.db.WithContext(ctx).Where("status = ?", string(models.DonationAvailable))
	if organType != "" {
		query = query.Where("organ_type = ?", string(organType))
	}
	if bloodGroup != "" {
		query = query.Where("blood_group = ?", string(bloodGroup))
	}

	var records []DonationModel
	if err := query.Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	donations := make([]models.Donation, 0, len(records))
	for _, record := range records {
		donations = append(donations, mapDonationModel(record))
	}
	return donations, nil
}

// AvailableDonation joins an AVAILABLE donation with its owning donor.
type AvailableDonation struct {
	Donation  models.Donation
	DonorName string
}

func (r *Repository) ListAvailableWithDonor(ctx context.Context, organType models.OrganType) ([]AvailableDonation, error) {
	type row struct {
		DonationModel
		DonorName string
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Table("donations").
		Select("donations.*, users.name AS donor_name").
		Joins("JOIN users ON users.id = donations.donor_id").
		Where("donations.status = ?", string(models.DonationAvailable)).
		Where("donations.organ_type = ?", string(organType)).
		Order("donations.created_at ASC, donations.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]AvailableDonation, 0, len(rows))
	for _, record := range rows {
		out = append(out, AvailableDonation{
			Donation:  mapDonationModel(record.DonationModel),
			DonorName: record.DonorName,
		})
	}
	return out, nil
}

func (r *Repository) CreateRequest(ctx context.Context, request models.OrganRequest) (models.OrganRequest, error) {
	record := RequestModel{
		ID:          uuid.New(),
		RecipientID: request.RecipientID,
		OrganType:   string(request.OrganType),
		BloodGroup:  string(request.BloodGroup),
		Urgency:     string(request.Urgency),
		Status:      string(models.RequestPending),
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.OrganRequest{}, err
	}
	return mapRequestModel(record), nil
}

func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (models.OrganRequest, error) {
	var record RequestModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OrganRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.OrganRequest{}, err
	}
	return mapRequestModel(record), nil
}

// urgencyOrder sorts CRITICAL first. The urgency column holds words, so a
// plain ORDER BY would sort alphabetically.
const urgencyOrder = "CASE urgency WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END"

func (r *Repository) ListRequests(ctx context.Context) ([]models.OrganRequest, error) {
	var records []RequestModel
	err := r.db.WithContext(ctx).Order(urgencyOrder + ", created_at DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return mapRequestModels(records), nil
}

func (r *Repository) ListRequestsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.OrganRequest, error) {
	var records []RequestModel
	err := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return mapRequestModels(records), nil
}

func (r *Repository) ListMatches(ctx context.Context) ([]models.Match, error) {
	var records []MatchModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(records))
	for _, record := range records {
		matches = append(matches, mapMatchModel(record))
	}
	return matches, nil
}

// AllocationInput carries the identifiers an allocation commits. The service
// has already re-verified compatibility; this layer owns atomicity.
type AllocationInput struct {
	DonorID     uuid.UUID
	RecipientID uuid.UUID
	DonationID  uuid.UUID
	RequestID   uuid.UUID
	OrganType   models.OrganType
	Note        string
}

// Allocate performs the three-way transition as one transaction. Both status
// changes are guarded UPDATEs filtered on the current status; zero affected
// rows means a competing allocation won and the whole transaction aborts.
// Readers can never observe a MATCHED donation without its match row.
func (r *Repository) Allocate(ctx context.Context, input AllocationInput) (models.Match, error) {
	record := MatchModel{
		ID:          uuid.New(),
		DonorID:     input.DonorID,
		RecipientID: input.RecipientID,
		DonationID:  input.DonationID,
		RequestID:   input.RequestID,
		OrganType:   string(input.OrganType),
		Status:      string(models.MatchCompleted),
		CreatedAt:   time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		donationUpdate := tx.Model(&DonationModel{}).
			Where("id = ? AND status = ?", input.DonationID, string(models.DonationAvailable)).
			Update("status", string(models.DonationMatched))
		if donationUpdate.Error != nil {
			return donationUpdate.Error
		}
		if donationUpdate.RowsAffected == 0 {
			return ErrAlreadyAllocated
		}

		requestUpdate := tx.Model(&RequestModel{}).
			Where("id = ? AND status = ?", input.RequestID, string(models.RequestPending)).
			Updates(map[string]interface{}{
				"status": string(models.RequestApproved),
				"note":   input.Note,
			})
		if requestUpdate.Error != nil {
			return requestUpdate.Error
		}
		if requestUpdate.RowsAffected == 0 {
			return ErrAlreadyAllocated
		}

		return tx.Create(&record).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyAllocated) {
			return models.Match{}, ErrAlreadyAllocated
		}
		return models.Match{}, fmt.Errorf("allocation transaction: %w", err)
	}

	return mapMatchModel(record), nil
}

// RejectRequest closes a pending request without consuming a donation. The
// same status guard applies: a request approved in the meantime stays
// approved.
func (r *Repository) RejectRequest(ctx context.Context, requestID uuid.UUID, note string) (models.OrganRequest, error) {
	update := r.db.WithContext(ctx).Model(&RequestModel{}).
		Where("id = ? AND status = ?", requestID, string(models.RequestPending)).
		Updates(map[string]interface{}{
			"status": string(models.RequestRejected),
			"note":   note,
		})
	if update.Error != nil {
		return models.OrganRequest{}, update.Error
	}
	if update.RowsAffected == 0 {
		if _, err := r.GetRequest(ctx, requestID); err != nil {
			return models.OrganRequest{}, err
		}
		return models.OrganRequest{}, ErrAlreadyAllocated
	}

	return r.GetRequest(ctx, requestID)
}

func (r *Repository) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("users").Where("role = ?", string(role)).Count(&count).Error
	return count, err
}

func (r *Repository) CountPendingRequests(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RequestModel{}).Where("status = ?", string(models.RequestPending)).Count(&count).Error
	return count, err
}

func (r *Repository) CountMatches(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&MatchModel{}).Count(&count).Error
	return count, err
}

func mapDonationModel(record DonationModel) models.Donation {
	return models.Donation{
		ID:         record.ID,
		OrganType:  models.OrganType(record.OrganType),
		BloodGroup: models.BloodGroup(record.BloodGroup),
		DonorID:    record.DonorID,
		Status:     models.DonationStatus(record.Status),
		CreatedAt:  record.CreatedAt,
	}
}

func mapRequestModel(record RequestModel) models.OrganRequest {
	return models.OrganRequest{
		ID:          record.ID,
		RecipientID: record.RecipientID,
		OrganType:   models.OrganType(record.OrganType),
		BloodGroup:  models.BloodGroup(record.BloodGroup),
		Urgency:     models.UrgencyLevel(record.Urgency),
		Status:      models.RequestStatus(record.Status),
		Note:        record.Note,
		CreatedAt:   record.CreatedAt,
	}
}

func mapRequestModels(records []RequestModel) []models.OrganRequest {
	requests := make([]models.OrganRequest, 0, len(records))
	for _, record := range records {
		requests = append(requests, mapRequestModel(record))
	}
	return requests
}

func mapMatchModel(record MatchModel) models.Match {
	return models.Match{
		ID:          record.ID,
		DonorID:     record.DonorID,
		RecipientID: record.RecipientID,
		DonationID:  record.DonationID,
		RequestID:   record.RequestID,
		OrganType:   models.OrganType(record.OrganType),
		Status:      models.MatchStatus(record.Status),
		CreatedAt:   record.CreatedAt,
	}
}
