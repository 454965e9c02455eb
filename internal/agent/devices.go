package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/futig/manual-assistant/internal/entity"
)

//go:embed devices.yaml
var defaultProfilesYAML []byte

var urgentKeywords = []string{"broken", "emergency", "urgent", "help", "immediately", "flooded"}

// DeviceProfile is one rule of the device table.
type DeviceProfile struct {
	Name        string   `yaml:"name"`
	Terms       []string `yaml:"terms"`
	Problems    []string `yaml:"problems"`
	Components  []string `yaml:"components"`
	Maintenance []string `yaml:"maintenance"`
	Usage       []string `yaml:"usage"`
}

// contextTerms is the union of problem, component, maintenance and usage terms.
func (p DeviceProfile) contextTerms() []string {
	terms := make([]string, 0, len(p.Problems)+len(p.Components)+len(p.Maintenance)+len(p.Usage))
	terms = append(terms, p.Problems...)
	terms = append(terms, p.Components...)
	terms = append(terms, p.Maintenance...)
	terms = append(terms, p.Usage...)
	return terms
}

// Detection is the outcome of device detection. DeviceType is empty when no
// profile matched.
type Detection struct {
	DeviceType string
	Category   entity.QueryCategory
	Details    *entity.DeviceDetails
}

// DeviceDetector matches inputs against an ordered profile list.
type DeviceDetector struct {
	profiles []DeviceProfile
}

// ParseProfiles decodes a YAML profile list, keeping its order.
func ParseProfiles(data []byte) ([]DeviceProfile, error) {
	var profiles []DeviceProfile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode device profiles: %w", err)
	}
	for i, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("device profile %d: %w: name", i, entity.ErrMissingField)
		}
	}
	return profiles, nil
}

// DefaultProfiles returns the built-in device table.
func DefaultProfiles() []DeviceProfile {
	profiles, err := ParseProfiles(defaultProfilesYAML)
	if err != nil {
		panic(err)
	}
	return profiles
}

func NewDeviceDetector(profiles []DeviceProfile) *DeviceDetector {
	return &DeviceDetector{profiles: profiles}
}

// Detect selects the first profile whose identifying or context terms occur
// in input, then categorises the query and rates its severity.
func (d *DeviceDetector) Detect(input string) Detection {
	lower := strings.ToLower(input)

	var profile *DeviceProfile
	for i := range d.profiles {
		p := &d.profiles[i]
		if containsAny(lower, p.Terms) || containsAny(lower, p.contextTerms()) {
			profile = p
			break
		}
	}
	if profile == nil {
		return Detection{}
	}

	details := &entity.DeviceDetails{}
	det := Detection{DeviceType: profile.Name, Details: details}

	problems := matching(lower, profile.Problems)
	maintenance := matching(lower, profile.Maintenance)
	usage := matching(lower, profile.Usage)

	switch {
	case len(problems) > 0:
		det.Category = entity.CategoryTroubleshooting
		details.Issues = problems
	case len(maintenance) > 0:
		det.Category = entity.CategoryMaintenance
		details.MaintenanceType = maintenance
	case len(usage) > 0:
		det.Category = entity.CategoryUsage
		details.UsageType = usage
	default:
		det.Category = entity.CategoryGeneral
	}
	details.Components = matching(lower, profile.Components)

	switch {
	case containsAny(lower, urgentKeywords):
		details.Severity = entity.SeverityUrgent
	case len(details.Issues) > 0:
		details.Severity = entity.SeverityHigh
	default:
		details.Severity = entity.SeverityNormal
	}
	return det
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// matching returns the terms contained in s, in table order. The result is
// never nil.
func matching(s string, terms []string) []string {
	out := []string{}
	for _, t := range terms {
		if strings.Contains(s, t) {
			out = append(out, t)
		}
	}
	return out
}
