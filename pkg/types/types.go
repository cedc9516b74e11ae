// Package types provides the type values and lattice operations consumed by the
// flow analysis engine: subtyping, least upper bound, non-null promotion, and
// factoring (subtracting a tested type from a known type).
package types

import "strings"

// Type is an immutable type value: a named type plus a nullability marker.
// The zero value is the absent type; use IsValid to distinguish it.
type Type struct {
	Name     string
	Nullable bool
}

// Well-known types.
var (
	ObjectType  = Type{Name: "Object"}
	NullType    = Type{Name: "Null"}
	NeverType   = Type{Name: "Never"}
	BoolType    = Type{Name: "bool"}
	IntType     = Type{Name: "int"}
	DoubleType  = Type{Name: "double"}
	NumType     = Type{Name: "num"}
	StringType  = Type{Name: "String"}
	DynamicType = Type{Name: "dynamic"}
)

// Parse builds a Type from its string form, e.g. "int" or "Object?".
func Parse(s string) Type {
	if strings.HasSuffix(s, "?") {
		return Type{Name: strings.TrimSuffix(s, "?"), Nullable: true}
	}
	return Type{Name: s}
}

// String returns the canonical string form of the type.
func (t Type) String() string {
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// IsValid reports whether t is a real type rather than the zero value.
func (t Type) IsValid() bool { return t.Name != "" }

// IsNull reports whether t is the Null type itself.
func (t Type) IsNull() bool { return t.Name == "Null" && !t.Nullable }

// NonNull returns the type with its nullability marker removed.
func (t Type) NonNull() Type { return Type{Name: t.Name} }

// WithNullable returns the type with its nullability marker added.
func (t Type) WithNullable() Type { return Type{Name: t.Name, Nullable: true} }

// Operations is the lattice interface the flow engine depends on. Implementations
// must be pure: no calls mutate the receiver or the argument types.
type Operations interface {
	// IsSubtypeOf reports whether sub is a subtype of super.
	IsSubtypeOf(sub, super Type) bool

	// IsSameType reports whether a and b denote the same type.
	IsSameType(a, b Type) bool

	// LUB returns the least upper bound of a and b.
	LUB(a, b Type) Type

	// PromoteToNonNull returns the non-null variant of t.
	PromoteToNonNull(t Type) Type

	// Factor returns the type remaining from t once other has been ruled out,
	// e.g. Factor(int?, Null) = int and Factor(int, num) = Never.
	Factor(t, other Type) Type

	// TryPromote returns the type to promote a variable of type from to when a
	// test against to succeeds, and whether promotion is sound. Promotion is
	// only sound when to is a proper subtype of from.
	TryPromote(from, to Type) (Type, bool)
}

// Hierarchy is a nominal type hierarchy backing Operations. Every named type has
// at most one supertype edge; Object is the implicit root.
type Hierarchy struct {
	super map[string]string
}

var _ Operations = (*Hierarchy)(nil)

// NewHierarchy builds a hierarchy from child->parent edges. Types not mentioned
// are treated as direct subtypes of Object.
func NewHierarchy(super map[string]string) *Hierarchy {
	edges := map[string]string{
		"int":    "num",
		"double": "num",
	}
	for child, parent := range super {
		edges[child] = parent
	}
	return &Hierarchy{super: edges}
}

// Standard returns a hierarchy containing only the built-in numeric edges.
func Standard() *Hierarchy { return NewHierarchy(nil) }

func (h *Hierarchy) parent(name string) (string, bool) {
	if name == "Object" {
		return "", false
	}
	if p, ok := h.super[name]; ok {
		return p, true
	}
	return "Object", true
}

// isNominalSubtype walks the supertype chain from sub looking for super.
func (h *Hierarchy) isNominalSubtype(sub, super string) bool {
	if super == "Object" || sub == "Never" || sub == super {
		return true
	}
	if sub == "dynamic" || super == "dynamic" {
		return true
	}
	for name := sub; ; {
		p, ok := h.parent(name)
		if !ok {
			return false
		}
		if p == super {
			return true
		}
		name = p
	}
}

// IsSubtypeOf implements Operations.
func (h *Hierarchy) IsSubtypeOf(sub, super Type) bool {
	if sub.Nullable && !super.Nullable {
		return false
	}
	if sub.IsNull() {
		return super.Nullable || super.Name == "Null" || super.Name == "dynamic"
	}
	return h.isNominalSubtype(sub.Name, super.Name)
}

// IsSameType implements Operations.
func (h *Hierarchy) IsSameType(a, b Type) bool { return a == b }

// depth returns the distance from name to Object along supertype edges.
func (h *Hierarchy) depth(name string) int {
	d := 0
	for {
		p, ok := h.parent(name)
		if !ok {
			return d
		}
		d++
		name = p
	}
}

// LUB implements Operations. The bound of the names is their nearest common
// ancestor; nullability is joined with OR, and Null forces a nullable result.
func (h *Hierarchy) LUB(a, b Type) Type {
	nullable := a.Nullable || b.Nullable
	switch {
	case a.IsNull() && b.IsNull():
		return NullType
	case a.IsNull():
		return b.WithNullable()
	case b.IsNull():
		return a.WithNullable()
	case a.Name == "Never":
		return Type{Name: b.Name, Nullable: nullable}
	case b.Name == "Never":
		return Type{Name: a.Name, Nullable: nullable}
	}

	an, bn := a.Name, b.Name
	da, db := h.depth(an), h.depth(bn)
	for da > db {
		an, _ = h.parent(an)
		da--
	}
	for db > da {
		bn, _ = h.parent(bn)
		db--
	}
	for an != bn {
		an, _ = h.parent(an)
		bn, _ = h.parent(bn)
	}
	return Type{Name: an, Nullable: nullable}
}

// PromoteToNonNull implements Operations.
func (h *Hierarchy) PromoteToNonNull(t Type) Type {
	if t.IsNull() {
		return NeverType
	}
	return t.NonNull()
}

// Factor implements Operations.
func (h *Hierarchy) Factor(t, other Type) Type {
	if h.IsSubtypeOf(t, other) {
		return NeverType
	}
	if other.IsNull() || other.Nullable && other.Name == "Null" {
		return h.PromoteToNonNull(t)
	}
	if t.Nullable && h.isNominalSubtype(t.Name, other.Name) && !other.Nullable {
		// Only the null half survives.
		return NullType
	}
	return t
}

// TryPromote implements Operations.
func (h *Hierarchy) TryPromote(from, to Type) (Type, bool) {
	if h.IsSameType(from, to) {
		return Type{}, false
	}
	if !h.IsSubtypeOf(to, from) {
		return Type{}, false
	}
	return to, true
}
