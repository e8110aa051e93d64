package domain

import (
	"slices"
	"time"
	"unicode"
)

const (
	// MinPercentage is the lowest rollout percentage.
	MinPercentage = 0
	// MaxPercentage is the highest rollout percentage.
	MaxPercentage = 100
	// MaxNameLength bounds flag names so they fit cache keys and index columns.
	MaxNameLength = 128
)

// FlagDefinition is the durable definition of a feature flag.
type FlagDefinition struct {
	Name             string    `json:"name"`
	Enabled          bool      `json:"enabled"`
	Percentage       int       `json:"percentage"`
	SubjectAllowList []string  `json:"subjectAllowList"`
	Description      string    `json:"description"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewFlagDefinition creates a disabled flag with no rollout.
func NewFlagDefinition(name string) *FlagDefinition {
	return &FlagDefinition{
		Name:             name,
		SubjectAllowList: []string{},
	}
}

// Allows reports whether the subject is explicitly allow-listed.
func (f *FlagDefinition) Allows(subjectID string) bool {
	if f == nil || subjectID == "" {
		return false
	}
	return slices.Contains(f.SubjectAllowList, subjectID)
}

// Clone returns a deep copy of the definition.
func (f *FlagDefinition) Clone() *FlagDefinition {
	if f == nil {
		return nil
	}
	c := *f
	c.SubjectAllowList = slices.Clone(f.SubjectAllowList)
	if c.SubjectAllowList == nil {
		c.SubjectAllowList = []string{}
	}
	return &c
}

// ValidateName checks that a flag name is usable as a store key and cache key segment.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidFlagName
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidFlagName
		}
	}
	return nil
}

// ClampPercentage forces p into [MinPercentage, MaxPercentage].
func ClampPercentage(p int) int {
	return min(max(p, MinPercentage), MaxPercentage)
}

// NormalizeSubjects drops empty entries and duplicates, keeping first-seen order.
// Entries are stored verbatim; Allows compares subject ids exactly.
func NormalizeSubjects(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
