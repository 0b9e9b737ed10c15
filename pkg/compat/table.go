package compat

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/lifelink-health/registry/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Table maps a donor blood group to the recipient groups it may supply. It
// is fixed data loaded once at startup; lookups never touch storage.
type Table struct {
	donorTo map[models.BloodGroup][]models.BloodGroup
}

type tableConfig struct {
	Groups []groupRule `yaml:"groups"`
}

type groupRule struct {
	Donor      string   `yaml:"donor"`
	Recipients []string `yaml:"recipients"`
}

// Default returns the standard ABO/Rh donation relation. O- is the universal
// donor, AB+ the universal recipient, Rh+ never supplies Rh-.
func Default() *Table {
	return &Table{donorTo: map[models.BloodGroup][]models.BloodGroup{
		models.ONeg:  {models.ONeg, models.OPos, models.ANeg, models.APos, models.BNeg, models.BPos, models.ABNeg, models.ABPos},
		models.OPos:  {models.OPos, models.APos, models.BPos, models.ABPos},
		models.ANeg:  {models.ANeg, models.APos, models.ABNeg, models.ABPos},
		models.APos:  {models.APos, models.ABPos},
		models.BNeg:  {models.BNeg, models.BPos, models.ABNeg, models.ABPos},
		models.BPos:  {models.BPos, models.ABPos},
		models.ABNeg: {models.ABNeg, models.ABPos},
		models.ABPos: {models.ABPos},
	}}
}

// Load reads a YAML override of the donation relation. An empty path yields
// the built-in default; clinical deployments should not need an override.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg tableConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Groups) == 0 {
		return nil, errors.New("no compatibility groups configured")
	}

	donorTo := make(map[models.BloodGroup][]models.BloodGroup, len(cfg.Groups))
	for _, rule := range cfg.Groups {
		recipients := make([]models.BloodGroup, 0, len(rule.Recipients))
		for _, r := range rule.Recipients {
			recipients = append(recipients, models.BloodGroup(r))
		}
		donorTo[models.BloodGroup(rule.Donor)] = recipients
	}

	return &Table{donorTo: donorTo}, nil
}

// CompatibleRecipients returns the recipient groups a donor group may
// supply. Unknown groups yield an empty slice, not an error.
func (t *Table) CompatibleRecipients(donor models.BloodGroup) []models.BloodGroup {
	recipients := t.donorTo[donor]
	out := make([]models.BloodGroup, len(recipients))
	copy(out, recipients)
	return out
}

func (t *Table) CanDonate(donor, recipient models.BloodGroup) bool {
	for _, r := range t.donorTo[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}
