package registry

import (
	"testing"

	"github.com/lifelink-health/registry/pkg/common/models"
)

func TestValidateDonationIntake(t *testing.T) {
	valid := models.DonationIntake{OrganType: models.OrganKidney, BloodGroup: models.ONeg}
	if err := ValidateDonationIntake(valid); err != nil {
		t.Fatalf("valid intake rejected: %v", err)
	}

	badType := models.DonationIntake{OrganType: "SPLEEN", BloodGroup: models.ONeg}
	if err := ValidateDonationIntake(badType); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown organ type, got %v", err)
	}

	badGroup := models.DonationIntake{OrganType: models.OrganLiver, BloodGroup: "C+"}
	if err := ValidateDonationIntake(badGroup); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown blood group, got %v", err)
	}
}

func TestValidateRequestIntake(t *testing.T) {
	valid := models.RequestIntake{OrganType: models.OrganHeart, BloodGroup: models.ABPos, Urgency: models.UrgencyCritical}
	if err := ValidateRequestIntake(valid); err != nil {
		t.Fatalf("valid intake rejected: %v", err)
	}

	badUrgency := models.RequestIntake{OrganType: models.OrganHeart, BloodGroup: models.ABPos, Urgency: "EXTREME"}
	if err := ValidateRequestIntake(badUrgency); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown urgency, got %v", err)
	}
}

func TestEveryEnumerationValueAccepted(t *testing.T) {
	for organType := range organTypes {
		for bloodGroup := range bloodGroups {
			intake := models.DonationIntake{OrganType: organType, BloodGroup: bloodGroup}
			if err := ValidateDonationIntake(intake); err != nil {
				t.Errorf("intake %s/%s rejected: %v", organType, bloodGroup, err)
			}
		}
	}
}
