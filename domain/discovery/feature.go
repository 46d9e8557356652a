package discovery

import (
	"fmt"
	"strings"

	"gopattern/domain/core"
)

// FeatureKind declares how a feature column is interpreted.
type FeatureKind string

const (
	FeatureContinuous  FeatureKind = "continuous"
	FeatureCategorical FeatureKind = "categorical"
	FeatureBoolean     FeatureKind = "boolean"
)

// IsValid reports whether the kind is one of the declared kinds.
func (k FeatureKind) IsValid() bool {
	switch k {
	case FeatureContinuous, FeatureCategorical, FeatureBoolean:
		return true
	}
	return false
}

// IsNumeric reports whether values of this kind are stored as numbers.
func (k FeatureKind) IsNumeric() bool {
	return k == FeatureContinuous || k == FeatureBoolean
}

// ParseFeatureKind accepts the declared kind names plus a few common aliases.
func ParseFeatureKind(s string) (FeatureKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous", "numeric", "float":
		return FeatureContinuous, nil
	case "categorical", "category", "string":
		return FeatureCategorical, nil
	case "boolean", "bool", "binary":
		return FeatureBoolean, nil
	}
	return "", fmt.Errorf("unknown feature kind %q", s)
}

// Feature is a named column with a declared kind.
type Feature struct {
	Name string      `json:"name" yaml:"name"`
	Kind FeatureKind `json:"kind" yaml:"kind"`
}

// FeatureHandle indexes a feature inside its FeatureSpec.
type FeatureHandle int

// FeatureSpec is the validated, ordered set of features for one analysis run.
type FeatureSpec struct {
	features []Feature
	index    map[string]FeatureHandle
}

// NewFeatureSpec validates names and kinds once; all later lookups go through handles.
func NewFeatureSpec(features []Feature) (FeatureSpec, error) {
	spec := FeatureSpec{
		features: make([]Feature, 0, len(features)),
		index:    make(map[string]FeatureHandle, len(features)),
	}
	for _, f := range features {
		if _, err := core.ParseFeatureKey(f.Name); err != nil {
			return FeatureSpec{}, core.NewSchemaError(f.Name, "feature name cannot be empty")
		}
		if !f.Kind.IsValid() {
			return FeatureSpec{}, core.NewSchemaError(f.Name, fmt.Sprintf("unknown kind %q", f.Kind))
		}
		if _, dup := spec.index[f.Name]; dup {
			return FeatureSpec{}, core.NewSchemaError(f.Name, "declared more than once")
		}
		spec.index[f.Name] = FeatureHandle(len(spec.features))
		spec.features = append(spec.features, f)
	}
	return spec, nil
}

// Len returns the number of features.
func (s FeatureSpec) Len() int {
	return len(s.features)
}

// Feature returns the feature behind a handle.
func (s FeatureSpec) Feature(h FeatureHandle) Feature {
	return s.features[h]
}

// Handle looks up a feature by name.
func (s FeatureSpec) Handle(name string) (FeatureHandle, bool) {
	h, ok := s.index[name]
	return h, ok
}

// Features returns a copy of the declared features in order.
func (s FeatureSpec) Features() []Feature {
	out := make([]Feature, len(s.features))
	copy(out, s.features)
	return out
}

// Handles returns all handles in declaration order.
func (s FeatureSpec) Handles() []FeatureHandle {
	out := make([]FeatureHandle, len(s.features))
	for i := range s.features {
		out[i] = FeatureHandle(i)
	}
	return out
}

// HandlesOfKind returns the handles of every feature with one of the given kinds.
func (s FeatureSpec) HandlesOfKind(kinds ...FeatureKind) []FeatureHandle {
	var out []FeatureHandle
	for i, f := range s.features {
		for _, k := range kinds {
			if f.Kind == k {
				out = append(out, FeatureHandle(i))
				break
			}
		}
	}
	return out
}
