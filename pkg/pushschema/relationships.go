package pushschema

import (
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// UnsupportedRelationship is a relationship that cannot be published.
type UnsupportedRelationship struct {
	Name            string                         `json:"name"`
	FromTable       string                         `json:"from_table"`
	FromColumn      string                         `json:"from_column"`
	ToTable         string                         `json:"to_table"`
	ToColumn        string                         `json:"to_column"`
	CardinalityText string                         `json:"cardinality"`
	CrossFilter     tabular.CrossFilteringBehavior `json:"cross_filter"`
	Reason          Reason                         `json:"reason"`

	source *tabular.Relationship
}

// String renders the diagnostic line 'From'[Col] *--1 'To'[Col] (OneDirection).
func (u UnsupportedRelationship) String() string {
	return "'" + u.FromTable + "'[" + u.FromColumn + "]" + u.CardinalityText +
		"'" + u.ToTable + "'[" + u.ToColumn + "] (" + u.CrossFilter.String() + ")"
}

func newUnsupportedRelationship(r *tabular.Relationship, reason Reason) UnsupportedRelationship {
	return UnsupportedRelationship{
		Name:            r.Name,
		FromTable:       r.FromTable,
		FromColumn:      r.FromColumn,
		ToTable:         r.ToTable,
		ToColumn:        r.ToColumn,
		CardinalityText: tabular.CardinalityText(r),
		CrossFilter:     r.CrossFilter(),
		Reason:          reason,
		source:          r,
	}
}

// RelationshipSupport reports why a relationship is unsupported, or "" when it is supported.
// Inactive relationships and relationships with equal cardinality at both
// ends (1:1 and many-to-many) are unsupported.
func RelationshipSupport(r *tabular.Relationship) Reason {
	if !r.Active() {
		return ReasonInactive
	}
	if r.FromEnd() == r.ToEnd() {
		return ReasonCardinality
	}
	return ""
}

// TranslateRelationship converts a supported relationship to its push dataset form.
// The boolean is false for unsupported relationships, which are never translated.
func TranslateRelationship(r *tabular.Relationship) (*Relationship, bool, error) {
	if RelationshipSupport(r) != "" {
		return nil, false, nil
	}
	cf, err := mapCrossFilter(r)
	if err != nil {
		return nil, false, err
	}
	return &Relationship{
		Name:                   r.Name,
		FromTable:              r.FromTable,
		FromColumn:             r.FromColumn,
		ToTable:                r.ToTable,
		ToColumn:               r.ToColumn,
		CrossFilteringBehavior: cf,
	}, true, nil
}

func mapCrossFilter(r *tabular.Relationship) (CrossFilteringBehavior, error) {
	switch r.CrossFilter() {
	case tabular.CrossFilterOneDirection:
		return CrossFilterOneDirection, nil
	case tabular.CrossFilterBothDirections:
		return CrossFilterBothDirections, nil
	case tabular.CrossFilterAutomatic:
		return CrossFilterAutomatic, nil
	default:
		return "", &UnknownCrossFilterError{Relationship: r.Name, Value: r.CrossFilteringBehavior}
	}
}
