package domain

import (
	"math"
	"strconv"
	"strings"
)

// UpsertOptions carries the fields an administrator wants to write.
// Nil fields keep the stored value, or take the default when the flag is new.
type UpsertOptions struct {
	Enabled          *bool
	Percentage       *int
	SubjectAllowList []string
	Description      *string

	// SetAllowList distinguishes "replace the list" from "leave it alone",
	// since an empty list is a meaningful value.
	SetAllowList bool
}

// Apply merges the options into base, clamping and normalizing as it goes.
// base is not modified.
func (o UpsertOptions) Apply(base *FlagDefinition) *FlagDefinition {
	out := base.Clone()
	if o.Enabled != nil {
		out.Enabled = *o.Enabled
	}
	if o.Percentage != nil {
		out.Percentage = *o.Percentage
	}
	out.Percentage = ClampPercentage(out.Percentage)
	if o.SetAllowList {
		out.SubjectAllowList = NormalizeSubjects(o.SubjectAllowList)
	}
	if o.Description != nil {
		out.Description = *o.Description
	}
	return out
}

// WithEnabled sets the enabled field.
func (o UpsertOptions) WithEnabled(v bool) UpsertOptions {
	o.Enabled = &v
	return o
}

// WithPercentage sets the percentage field.
func (o UpsertOptions) WithPercentage(v int) UpsertOptions {
	o.Percentage = &v
	return o
}

// WithAllowList replaces the subject allow-list.
func (o UpsertOptions) WithAllowList(subjects ...string) UpsertOptions {
	o.SubjectAllowList = subjects
	o.SetAllowList = true
	return o
}

// WithDescription sets the description.
func (o UpsertOptions) WithDescription(v string) UpsertOptions {
	o.Description = &v
	return o
}

// ParseUpsertOptions coerces a loosely typed document (decoded JSON) into options.
//
// Coercion rules: "enabled" takes the truthiness of any value; "percentage" must be a
// number or a numeric string and is floored then clamped; a "subjectAllowList" that is
// not a list becomes an empty list; a "description" that is not a string becomes "".
func ParseUpsertOptions(raw map[string]any) (UpsertOptions, error) {
	var opts UpsertOptions

	if v, ok := raw["enabled"]; ok {
		opts = opts.WithEnabled(truthy(v))
	}

	if v, ok := raw["percentage"]; ok {
		p, err := parsePercentage(v)
		if err != nil {
			return UpsertOptions{}, err
		}
		opts = opts.WithPercentage(p)
	}

	if v, ok := raw["subjectAllowList"]; ok {
		opts.SetAllowList = true
		opts.SubjectAllowList = []string{}
		switch list := v.(type) {
		case []any:
			for _, item := range list {
				if s, ok := item.(string); ok {
					opts.SubjectAllowList = append(opts.SubjectAllowList, s)
				}
			}
		case []string:
			opts.SubjectAllowList = append(opts.SubjectAllowList, list...)
		}
	}

	if v, ok := raw["description"]; ok {
		s, _ := v.(string)
		opts = opts.WithDescription(s)
	}

	return opts, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	default:
		return true
	}
}

func parsePercentage(v any) (int, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, ErrInvalidPercentage
		}
		f = parsed
	default:
		return 0, ErrInvalidPercentage
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidPercentage
	}
	if f <= MinPercentage {
		return MinPercentage, nil
	}
	if f >= MaxPercentage {
		return MaxPercentage, nil
	}
	return int(math.Floor(f)), nil
}
