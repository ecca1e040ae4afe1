// Package graph provides the in-memory node/edge set for one domain and
// the fixed relationship-type vocabulary.
package graph

// TypeInfo is static metadata for one relationship type.
//
// The metadata is used for display and ranking only, never for data
// integrity decisions.
type TypeInfo struct {
	// Description explains the relationship.
	Description string

	// Bidirectional marks relationships that read the same both ways.
	Bidirectional bool

	// Transitive marks relationships that chain (A→B, B→C implies A⇒C).
	Transitive bool

	// Inverse is the type naming the reverse direction, or empty for
	// bidirectional types.
	Inverse string

	// Weight is the semantic weight used for display ranking.
	Weight float64
}

// Types is the fixed relationship-type vocabulary.
var Types = map[string]TypeInfo{
	"relates_to": {
		Description:   "general association between two memories",
		Bidirectional: true,
		Weight:        0.5,
	},
	"similar_to": {
		Description:   "the memories describe the same thing",
		Bidirectional: true,
		Weight:        0.6,
	},
	"contradicts": {
		Description:   "the memories cannot both hold",
		Bidirectional: true,
		Weight:        0.8,
	},
	"references": {
		Description: "source mentions or cites target",
		Inverse:     "referenced_by",
		Weight:      0.4,
	},
	"referenced_by": {
		Description: "source is mentioned or cited by target",
		Inverse:     "references",
		Weight:      0.4,
	},
	"precedes": {
		Description: "source comes before target in time or order",
		Transitive:  true,
		Inverse:     "follows",
		Weight:      0.5,
	},
	"follows": {
		Description: "source comes after target in time or order",
		Transitive:  true,
		Inverse:     "precedes",
		Weight:      0.5,
	},
	"causes": {
		Description: "source brings about target",
		Transitive:  true,
		Inverse:     "caused_by",
		Weight:      0.9,
	},
	"caused_by": {
		Description: "source is brought about by target",
		Transitive:  true,
		Inverse:     "causes",
		Weight:      0.9,
	},
	"contains": {
		Description: "source subsumes target",
		Transitive:  true,
		Inverse:     "part_of",
		Weight:      0.7,
	},
	"part_of": {
		Description: "source is a component of target",
		Transitive:  true,
		Inverse:     "contains",
		Weight:      0.7,
	},
	"depends_on": {
		Description: "source requires target",
		Inverse:     "required_by",
		Weight:      0.8,
	},
	"required_by": {
		Description: "source is required by target",
		Inverse:     "depends_on",
		Weight:      0.8,
	},
	"extends": {
		Description: "source elaborates on target",
		Inverse:     "extended_by",
		Weight:      0.6,
	},
	"extended_by": {
		Description: "source is elaborated on by target",
		Inverse:     "extends",
		Weight:      0.6,
	},
}

// KnownType reports whether t is in the vocabulary.
func KnownType(t string) bool {
	_, ok := Types[t]
	return ok
}

// Inverse returns the inverse type: the declared inverse for directed
// types, the type itself for bidirectional ones, empty for unknown types.
func Inverse(t string) string {
	info, ok := Types[t]
	if !ok {
		return ""
	}
	if info.Bidirectional {
		return t
	}
	return info.Inverse
}
