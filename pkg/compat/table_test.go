package compat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lifelink-health/registry/pkg/common/models"
)

func TestDefaultTableCoversAllGroups(t *testing.T) {
	table := Default()

	groups := []models.BloodGroup{
		models.ONeg, models.OPos, models.ANeg, models.APos,
		models.BNeg, models.BPos, models.ABNeg, models.ABPos,
	}

	for _, g := range groups {
		if len(table.CompatibleRecipients(g)) == 0 {
			t.Errorf("expected non-empty recipient set for %s", g)
		}
	}

	if got := len(table.CompatibleRecipients(models.ONeg)); got != 8 {
		t.Errorf("O- should supply all eight groups, got %d", got)
	}

	abPos := table.CompatibleRecipients(models.ABPos)
	if len(abPos) != 1 || abPos[0] != models.ABPos {
		t.Errorf("AB+ should supply only AB+, got %v", abPos)
	}
}

func TestRhPositiveNeverSuppliesRhNegative(t *testing.T) {
	table := Default()

	positives := []models.BloodGroup{models.OPos, models.APos, models.BPos, models.ABPos}
	negatives := []models.BloodGroup{models.ONeg, models.ANeg, models.BNeg, models.ABNeg}

	for _, donor := range positives {
		for _, recipient := range negatives {
			if table.CanDonate(donor, recipient) {
				t.Errorf("%s must not supply %s", donor, recipient)
			}
		}
	}
}

func TestCanDonateScenarios(t *testing.T) {
	table := Default()

	cases := []struct {
		donor     models.BloodGroup
		recipient models.BloodGroup
		want      bool
	}{
		{models.ONeg, models.ABPos, true},
		{models.APos, models.BNeg, false},
		{models.APos, models.ABPos, true},
		{models.BNeg, models.BPos, true},
		{models.ABNeg, models.ABPos, true},
		{models.ABPos, models.ONeg, false},
	}

	for _, tc := range cases {
		if got := table.CanDonate(tc.donor, tc.recipient); got != tc.want {
			t.Errorf("CanDonate(%s, %s) = %v, want %v", tc.donor, tc.recipient, got, tc.want)
		}
	}
}

func TestUnknownGroupYieldsEmptySet(t *testing.T) {
	table := Default()

	if got := table.CompatibleRecipients("XY+"); len(got) != 0 {
		t.Errorf("unknown group should yield empty set, got %v", got)
	}
	if table.CanDonate("XY+", models.APos) {
		t.Error("unknown donor group must not donate")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	content := `groups:
  - donor: "O-"
    recipients: ["O-", "O+"]
  - donor: "O+"
    recipients: ["O+"]
`
	path := filepath.Join(t.TempDir(), "table.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("loading override: %v", err)
	}

	if !table.CanDonate(models.ONeg, models.OPos) {
		t.Error("override should allow O- to O+")
	}
	if table.CanDonate(models.ONeg, models.APos) {
		t.Error("override should not allow O- to A+")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table.CanDonate(models.ONeg, models.ABPos) {
		t.Error("default table should allow O- to AB+")
	}
}
