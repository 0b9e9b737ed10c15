package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lifelink-health/registry/pkg/common/logger"
	"github.com/lifelink-health/registry/pkg/common/models"
	"github.com/lifelink-health/registry/pkg/compat"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRequestNotPending reports a suggestion or rejection against a
	// request that has already been handled.
	ErrRequestNotPending = errors.New("request is no longer pending")

	errForbiddenRole = errors.New("user role not permitted for this operation")
)

const approvalNote = "Matched with compatible donor"

// Store is the persistence surface the engine needs. *Repository implements
// it; tests substitute a fake that honors the same conditional-update
// contract.
type Store interface {
	CreateDonation(ctx context.Context, donation models.Donation) (models.Donation, error)
	GetDonation(ctx context.Context, id uuid.UUID) (models.Donation, error)
	ListAvailable(ctx context.Context, organType models.OrganType, bloodGroup models.BloodGroup) ([]models.Donation, error)
	ListAvailableWithDonor(ctx context.Context, organType models.OrganType) ([]AvailableDonation, error)

	CreateRequest(ctx context.Context, request models.OrganRequest) (models.OrganRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (models.OrganRequest, error)
	ListRequests(ctx context.Context) ([]models.OrganRequest, error)
	ListRequestsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.OrganRequest, error)

	Allocate(ctx context.Context, input AllocationInput) (models.Match, error)
	RejectRequest(ctx context.Context, requestID uuid.UUID, note string) (models.OrganRequest, error)
	ListMatches(ctx context.Context) ([]models.Match, error)

	CountUsersByRole(ctx context.Context, role models.Role) (int64, error)
	CountPendingRequests(ctx context.Context) (int64, error)
	CountMatches(ctx context.Context) (int64, error)
}

// EventPublisher is the audit event sink. Publishing happens after commit
// and never rolls an allocation back.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	store     Store
	table     *compat.Table
	producer  EventPublisher
	cache     *redis.Client
	statsTTL  time.Duration
	eventFrom string
}

func NewService(store Store, table *compat.Table, producer EventPublisher, cache *redis.Client, statsTTL time.Duration) *Service {
	return &Service{
		store:     store,
		table:     table,
		producer:  producer,
		cache:     cache,
		statsTTL:  statsTTL,
		eventFrom: "registry-service",
	}
}

// RegisterDonation runs donor intake. Every donation starts AVAILABLE; the
// donor's blood group is denormalized onto the donation row so availability
// queries never fan out to the users table.
func (s *Service) RegisterDonation(ctx context.Context, donor models.User, intake models.DonationIntake) (models.Donation, error) {
	if donor.Role != models.RoleDonor {
		return models.Donation{}, ValidationError{reason: errForbiddenRole}
	}
	if err := ValidateDonationIntake(intake); err != nil {
		return models.Donation{}, err
	}

	return s.store.CreateDonation(ctx, models.Donation{
		OrganType:  intake.OrganType,
		BloodGroup: intake.BloodGroup,
		DonorID:    donor.ID,
	})
}

// SubmitRequest runs recipient intake. Every request starts PENDING.
func (s *Service) SubmitRequest(ctx context.Context, recipient models.User, intake models.RequestIntake) (models.OrganRequest, error) {
	if recipient.Role != models.RoleRecipient {
		return models.OrganRequest{}, ValidationError{reason: errForbiddenRole}
	}
	if err := ValidateRequestIntake(intake); err != nil {
		return models.OrganRequest{}, err
	}

	return s.store.CreateRequest(ctx, models.OrganRequest{
		RecipientID: recipient.ID,
		OrganType:   intake.OrganType,
		BloodGroup:  intake.BloodGroup,
		Urgency:     intake.Urgency,
	})
}

// ListAvailable serves the intake/listing screens. Filters are optional but
// must be known enum values when present.
func (s *Service) ListAvailable(ctx context.Context, organType models.OrganType, bloodGroup models.BloodGroup) ([]models.Donation, error) {
	if organType != "" {
		if err := validateOrganType(organType); err != nil {
			return nil, err
		}
	}
	if bloodGroup != "" {
		if err := validateBloodGroup(bloodGroup); err != nil {
			return nil, err
		}
	}
	return s.store.ListAvailable(ctx, organType, bloodGroup)
}

// SuggestMatches returns candidate donations for a pending request: exact
// organ type, donor blood group compatible with the recipient's, oldest
// donation first. An empty list is a normal outcome, not an error. The list
// is advisory only; Allocate re-verifies everything because time passes
// between suggestion and approval.
func (s *Service) SuggestMatches(ctx context.Context, requestID uuid.UUID) ([]models.Suggestion, error) {
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, ErrRequestNotPending
	}

	candidates, err := s.store.ListAvailableWithDonor(ctx, request.OrganType)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.Suggestion, 0, len(candidates))
	for _, candidate := range candidates {
		if !s.table.CanDonate(candidate.Donation.BloodGroup, request.BloodGroup) {
			continue
		}
		suggestions = append(suggestions, models.Suggestion{
			Donation:        candidate.Donation,
			DonorName:       candidate.DonorName,
			DonorBloodGroup: candidate.Donation.BloodGroup,
		})
	}

	return suggestions, nil
}

// Allocate approves one suggested candidate. Caller-supplied denormalized
// fields are verified against storage, never trusted: the donation and
// request are re-read, ownership and organ types are checked, and blood
// compatibility is re-derived before the guarded transaction runs.
func (s *Service) Allocate(ctx context.Context, params models.AllocateRequest) (models.Match, error) {
	request, err := s.store.GetRequest(ctx, params.RequestID)
	if err != nil {
		return models.Match{}, err
	}
	donation, err := s.store.GetDonation(ctx, params.DonationID)
	if err != nil {
		return models.Match{}, err
	}

	if donation.DonorID != params.DonorID {
		return models.Match{}, ValidationError{reason: fmt.Errorf("donation %s does not belong to donor %s", donation.ID, params.DonorID)}
	}
	if request.RecipientID != params.RecipientID {
		return models.Match{}, ValidationError{reason: fmt.Errorf("request %s does not belong to recipient %s", request.ID, params.RecipientID)}
	}
	if donation.OrganType != request.OrganType {
		return models.Match{}, ValidationError{reason: fmt.Errorf("organ type mismatch: donation is %s, request wants %s", donation.OrganType, request.OrganType)}
	}
	if !s.table.CanDonate(donation.BloodGroup, request.BloodGroup) {
		return models.Match{}, ValidationError{reason: fmt.Errorf("blood group %s cannot supply %s", donation.BloodGroup, request.BloodGroup)}
	}

	// Fail fast on stale candidates. The transaction's status guards remain
	// authoritative under races.
	if donation.Status != models.DonationAvailable || request.Status != models.RequestPending {
		return models.Match{}, ErrAlreadyAllocated
	}

	match, err := s.store.Allocate(ctx, AllocationInput{
		DonorID:     donation.DonorID,
		RecipientID: request.RecipientID,
		DonationID:  donation.ID,
		RequestID:   request.ID,
		OrganType:   donation.OrganType,
		Note:        approvalNote,
	})
	if err != nil {
		return models.Match{}, err
	}

	s.publish(ctx, "match.created", map[string]interface{}{
		"match_id":    match.ID.String(),
		"donation_id": match.DonationID.String(),
		"request_id":  match.RequestID.String(),
		"organ_type":  string(match.OrganType),
	})

	s.invalidateStats(ctx)

	return match, nil
}

// RejectRequest closes a pending request with an operator note.
func (s *Service) RejectRequest(ctx context.Context, requestID uuid.UUID, note string) (models.OrganRequest, error) {
	request, err := s.store.RejectRequest(ctx, requestID, note)
	if err != nil {
		if errors.Is(err, ErrAlreadyAllocated) {
			return models.OrganRequest{}, ErrRequestNotPending
		}
		return models.OrganRequest{}, err
	}

	s.publish(ctx, "request.rejected", map[string]interface{}{
		"request_id": request.ID.String(),
		"organ_type": string(request.OrganType),
	})

	s.invalidateStats(ctx)

	return request, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (models.OrganRequest, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context) ([]models.OrganRequest, error) {
	return s.store.ListRequests(ctx)
}

func (s *Service) ListRequestsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.OrganRequest, error) {
	return s.store.ListRequestsByRecipient(ctx, recipientID)
}

func (s *Service) ListMatches(ctx context.Context) ([]models.Match, error) {
	return s.store.ListMatches(ctx)
}

const statsCacheKey = "registry:stats"

// Stats serves the admin dashboard counts, cached briefly in redis. The
// cache never feeds allocation decisions; on any cache fault the counts come
// straight from storage.
func (s *Service) Stats(ctx context.Context) (models.RegistryStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, statsCacheKey).Result()
		if err == nil {
			var stats models.RegistryStats
			if jsonErr := json.Unmarshal([]byte(cached), &stats); jsonErr == nil {
				return stats, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).Debug("stats cache read failed")
		}
	}

	donors, err := s.store.CountUsersByRole(ctx, models.RoleDonor)
	if err != nil {
		return models.RegistryStats{}, err
	}
	recipients, err := s.store.CountUsersByRole(ctx, models.RoleRecipient)
	if err != nil {
		return models.RegistryStats{}, err
	}
	pending, err := s.store.CountPendingRequests(ctx)
	if err != nil {
		return models.RegistryStats{}, err
	}
	matches, err := s.store.CountMatches(ctx)
	if err != nil {
		return models.RegistryStats{}, err
	}

	stats := models.RegistryStats{
		Donors:          donors,
		Recipients:      recipients,
		PendingRequests: pending,
		Matches:         matches,
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, payload, s.statsTTL).Err(); err != nil {
				logger.Log.WithError(err).Debug("stats cache write failed")
			}
		}
	}

	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		logger.Log.WithError(err).Debug("stats cache invalidation failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, s.eventFrom, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to publish registry event")
	}
}
