package flow

import (
	"fmt"

	"github.com/calitho/skiff/pkg/tree"
)

// ReasonKind classifies why a promotion a reader might expect did not happen.
type ReasonKind uint8

const (
	// ReasonPropertyNotPromoted: the tested target is a property access, and
	// properties are never promoted.
	ReasonPropertyNotPromoted ReasonKind = iota

	// ReasonWriteCaptured: the variable is write-captured by a closure.
	ReasonWriteCaptured

	// ReasonDemotedByWrite: an intervening assignment reset the promotion.
	ReasonDemotedByWrite

	// ReasonConflictingJoin: the branches of a join disagreed on the promoted
	// type or on the observed value.
	ReasonConflictingJoin
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonPropertyNotPromoted:
		return "propertyNotPromoted"
	case ReasonWriteCaptured:
		return "writeCaptured"
	case ReasonDemotedByWrite:
		return "demotedByWrite"
	case ReasonConflictingJoin:
		return "conflictingJoin"
	}
	return "unknown"
}

// NonPromotionReason is the structured answer to a WhyNotPromoted query.
type NonPromotionReason struct {
	Kind ReasonKind

	// Member is the property name for ReasonPropertyNotPromoted.
	Member string

	// Node is the conflicting node: the demoting write, the capturing closure,
	// or the join point, depending on Kind.
	Node *tree.Node
}

func (r NonPromotionReason) String() string {
	switch r.Kind {
	case ReasonPropertyNotPromoted:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Member)
	default:
		return r.Kind.String()
	}
}
