package models

import (
	"time"

	"github.com/google/uuid"
)

// Enumerations. Values are persisted verbatim, do not rename.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDonor     Role = "DONOR"
	RoleRecipient Role = "RECIPIENT"
)

type OrganType string

const (
	OrganKidney   OrganType = "KIDNEY"
	OrganLiver    OrganType = "LIVER"
	OrganHeart    OrganType = "HEART"
	OrganLungs    OrganType = "LUNGS"
	OrganPancreas OrganType = "PANCREAS"
	OrganCornea   OrganType = "CORNEA"
)

type BloodGroup string

const (
	ONeg  BloodGroup = "O-"
	OPos  BloodGroup = "O+"
	ANeg  BloodGroup = "A-"
	APos  BloodGroup = "A+"
	BNeg  BloodGroup = "B-"
	BPos  BloodGroup = "B+"
	ABNeg BloodGroup = "AB-"
	ABPos BloodGroup = "AB+"
)

type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "CRITICAL"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyLow      UrgencyLevel = "LOW"
)

type DonationStatus string

const (
	DonationAvailable DonationStatus = "AVAILABLE"
	DonationMatched   DonationStatus = "MATCHED"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

type MatchStatus string

const MatchCompleted MatchStatus = "COMPLETED"

// Domain entities
type User struct {
	ID         uuid.UUID              `json:"id"`
	Email      string                 `json:"email"`
	Name       string                 `json:"name"`
	Role       Role                   `json:"role"`
	BloodGroup BloodGroup             `json:"blood_group,omitempty"`
	Age        int                    `json:"age,omitempty"`
	Gender     string                 `json:"gender,omitempty"`
	Contact    string                 `json:"contact,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

type Donation struct {
	ID         uuid.UUID      `json:"id"`
	OrganType  OrganType      `json:"organ_type"`
	BloodGroup BloodGroup     `json:"blood_group"`
	DonorID    uuid.UUID      `json:"donor_id"`
	Status     DonationStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

type OrganRequest struct {
	ID          uuid.UUID     `json:"id"`
	RecipientID uuid.UUID     `json:"recipient_id"`
	OrganType   OrganType     `json:"organ_type"`
	BloodGroup  BloodGroup    `json:"blood_group"`
	Urgency     UrgencyLevel  `json:"urgency"`
	Status      RequestStatus `json:"status"`
	Note        string        `json:"note,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type Match struct {
	ID          uuid.UUID   `json:"id"`
	DonorID     uuid.UUID   `json:"donor_id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	DonationID  uuid.UUID   `json:"donation_id"`
	RequestID   uuid.UUID   `json:"request_id"`
	OrganType   OrganType   `json:"organ_type"`
	Status      MatchStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Suggestion is one candidate donation for a pending request, joined with
// the owning donor for the approval screen.
type Suggestion struct {
	Donation        Donation   `json:"donation"`
	DonorName       string     `json:"donor_name"`
	DonorBloodGroup BloodGroup `json:"donor_blood_group"`
}

// API payloads
type RegisterUserRequest struct {
	Email      string                 `json:"email"`
	Password   string                 `json:"password"`
	Name       string                 `json:"name"`
	Role       Role                   `json:"role"`
	BloodGroup BloodGroup             `json:"blood_group,omitempty"`
	Age        int                    `json:"age,omitempty"`
	Gender     string                 `json:"gender,omitempty"`
	Contact    string                 `json:"contact,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type DonationIntake struct {
	OrganType  OrganType  `json:"organ_type"`
	BloodGroup BloodGroup `json:"blood_group"`
}

type RequestIntake struct {
	OrganType  OrganType    `json:"organ_type"`
	BloodGroup BloodGroup   `json:"blood_group"`
	Urgency    UrgencyLevel `json:"urgency"`
}

type AllocateRequest struct {
	DonorID     uuid.UUID `json:"donor_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	DonationID  uuid.UUID `json:"donation_id"`
	RequestID   uuid.UUID `json:"request_id"`
	OrganType   OrganType `json:"organ_type"`
}

type RejectRequestInput struct {
	Note string `json:"note,omitempty"`
}

type RegistryStats struct {
	Donors          int64 `json:"donors"`
	Recipients      int64 `json:"recipients"`
	PendingRequests int64 `json:"pending"`
	Matches         int64 `json:"matches"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // match.created, request.rejected
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
