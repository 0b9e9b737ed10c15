package registry

import (
	"errors"
	"fmt"

	"github.com/lifelink-health/registry/pkg/common/models"
)

var (
	errUnknownOrganType  = errors.New("unknown organ type")
	errUnknownBloodGroup = errors.New("unknown blood group")
	errUnknownUrgency    = errors.New("unknown urgency level")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

var organTypes = map[models.OrganType]struct{}{
	models.OrganKidney:   {},
	models.OrganLiver:    {},
	models.OrganHeart:    {},
	models.OrganLungs:    {},
	models.OrganPancreas: {},
	models.OrganCornea:   {},
}

var bloodGroups = map[models.BloodGroup]struct{}{
	models.ONeg:  {},
	models.OPos:  {},
	models.ANeg:  {},
	models.APos:  {},
	models.BNeg:  {},
	models.BPos:  {},
	models.ABNeg: {},
	models.ABPos: {},
}

var urgencyLevels = map[models.UrgencyLevel]struct{}{
	models.UrgencyCritical: {},
	models.UrgencyHigh:     {},
	models.UrgencyMedium:   {},
	models.UrgencyLow:      {},
}

func validateOrganType(t models.OrganType) error {
	if _, ok := organTypes[t]; !ok {
		return ValidationError{reason: fmt.Errorf("organ type '%s': %w", t, errUnknownOrganType)}
	}
	return nil
}

func validateBloodGroup(g models.BloodGroup) error {
	if _, ok := bloodGroups[g]; !ok {
		return ValidationError{reason: fmt.Errorf("blood group '%s': %w", g, errUnknownBloodGroup)}
	}
	return nil
}

func validateUrgency(u models.UrgencyLevel) error {
	if _, ok := urgencyLevels[u]; !ok {
		return ValidationError{reason: fmt.Errorf("urgency '%s': %w", u, errUnknownUrgency)}
	}
	return nil
}

// ValidateDonationIntake gates organ registration. Unknown values are
// rejected before anything is persisted.
func ValidateDonationIntake(intake models.DonationIntake) error {
	if err := validateOrganType(intake.OrganType); err != nil {
		return err
	}
	return validateBloodGroup(intake.BloodGroup)
}

// ValidateRequestIntake gates request submission.
func ValidateRequestIntake(intake models.RequestIntake) error {
	if err := validateOrganType(intake.OrganType); err != nil {
		return err
	}
	if err := validateBloodGroup(intake.BloodGroup); err != nil {
		return err
	}
	return validateUrgency(intake.Urgency)
}
