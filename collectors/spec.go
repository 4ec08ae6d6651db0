package collectors

import "slices"

// CollectionSpec is what a plugin asks the runtime to gather. All sequences keep
// their declared order.
type CollectionSpec struct {
	CopyPaths      []string `json:"copy_paths" yaml:"copy_paths"`
	ForbiddenPaths []string `json:"forbidden_paths,omitempty" yaml:"forbidden_paths,omitempty"`
	Commands       []string `json:"commands,omitempty" yaml:"commands,omitempty"`
	JournalUnits   []string `json:"journal_units,omitempty" yaml:"journal_units,omitempty"`
}

func (s CollectionSpec) clone() CollectionSpec {
	return CollectionSpec{
		CopyPaths:      slices.Clone(s.CopyPaths),
		ForbiddenPaths: slices.Clone(s.ForbiddenPaths),
		Commands:       slices.Clone(s.Commands),
		JournalUnits:   slices.Clone(s.JournalUnits),
	}
}

// Equal reports whether both specs declare the same items in the same order.
func (s CollectionSpec) Equal(o CollectionSpec) bool {
	return slices.Equal(s.CopyPaths, o.CopyPaths) &&
		slices.Equal(s.ForbiddenPaths, o.ForbiddenPaths) &&
		slices.Equal(s.Commands, o.Commands) &&
		slices.Equal(s.JournalUnits, o.JournalUnits)
}

// IsForbidden reports whether path is excluded by a forbidden entry.
func (s CollectionSpec) IsForbidden(path string) bool {
	for _, f := range s.ForbiddenPaths {
		if Within(path, f) {
			return true
		}
	}
	return false
}

// Covers reports whether path falls under one of the copy paths.
func (s CollectionSpec) Covers(path string) bool {
	for _, c := range s.CopyPaths {
		if Within(path, c) {
			return true
		}
	}
	return false
}

// IneffectiveForbidden returns the forbidden entries that no copy path covers.
// Such entries are legal; they just never exclude anything.
func (s CollectionSpec) IneffectiveForbidden() []string {
	var out []string
	for _, f := range s.ForbiddenPaths {
		if !s.Covers(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether the spec declares nothing to collect.
func (s CollectionSpec) Empty() bool {
	return len(s.CopyPaths) == 0 && len(s.Commands) == 0 && len(s.JournalUnits) == 0
}
