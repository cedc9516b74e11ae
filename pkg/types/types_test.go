package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in       string
		nullable bool
	}{
		{"int", false},
		{"int?", true},
		{"Object?", true},
		{"Null", false},
	}
	for _, tt := range tests {
		typ := Parse(tt.in)
		assert.Equal(t, tt.nullable, typ.Nullable)
		assert.Equal(t, tt.in, typ.String())
	}
}

func TestIsSubtypeOf(t *testing.T) {
	h := Standard()
	tests := []struct {
		sub, super string
		want       bool
	}{
		{"int", "num", true},
		{"int", "Object", true},
		{"int", "int", true},
		{"num", "int", false},
		{"int", "String", false},
		{"int", "int?", true},
		{"int?", "int", false},
		{"int?", "num?", true},
		{"Null", "int?", true},
		{"Null", "int", false},
		{"Never", "int", true},
		{"String", "Object?", true},
	}
	for _, tt := range tests {
		got := h.IsSubtypeOf(Parse(tt.sub), Parse(tt.super))
		assert.Equal(t, tt.want, got, "%s <: %s", tt.sub, tt.super)
	}
}

func TestLUB(t *testing.T) {
	h := Standard()
	tests := []struct {
		a, b, want string
	}{
		{"int", "double", "num"},
		{"int", "int", "int"},
		{"int", "String", "Object"},
		{"int", "Null", "int?"},
		{"String", "Null", "String?"},
		{"int?", "double", "num?"},
		{"Never", "int", "int"},
		{"Null", "Null", "Null"},
	}
	for _, tt := range tests {
		got := h.LUB(Parse(tt.a), Parse(tt.b))
		assert.Equal(t, tt.want, got.String(), "LUB(%s, %s)", tt.a, tt.b)
	}
}

func TestLUBSymmetric(t *testing.T) {
	h := Standard()
	pairs := [][2]string{{"int", "double"}, {"int?", "String"}, {"Null", "num"}}
	for _, p := range pairs {
		a, b := Parse(p[0]), Parse(p[1])
		assert.Equal(t, h.LUB(a, b), h.LUB(b, a))
	}
}

func TestPromoteToNonNull(t *testing.T) {
	h := Standard()
	assert.Equal(t, "int", h.PromoteToNonNull(Parse("int?")).String())
	assert.Equal(t, "int", h.PromoteToNonNull(Parse("int")).String())
	assert.Equal(t, "Never", h.PromoteToNonNull(Parse("Null")).String())
}

func TestFactor(t *testing.T) {
	h := Standard()
	tests := []struct {
		t, other, want string
	}{
		{"int?", "Null", "int"},
		{"int", "num", "Never"},
		{"num", "int", "num"},
		{"num?", "num", "Null"},
		{"String", "int", "String"},
	}
	for _, tt := range tests {
		got := h.Factor(Parse(tt.t), Parse(tt.other))
		assert.Equal(t, tt.want, got.String(), "Factor(%s, %s)", tt.t, tt.other)
	}
}

func TestTryPromote(t *testing.T) {
	h := Standard()

	got, ok := h.TryPromote(Parse("num"), Parse("int"))
	assert.True(t, ok)
	assert.Equal(t, "int", got.String())

	_, ok = h.TryPromote(Parse("int"), Parse("int"))
	assert.False(t, ok, "promotion to the same type is not a promotion")

	_, ok = h.TryPromote(Parse("int"), Parse("String"))
	assert.False(t, ok, "promotion to a non-subtype is unsound")

	got, ok = h.TryPromote(Parse("int?"), Parse("int"))
	assert.True(t, ok)
	assert.Equal(t, "int", got.String())
}

func TestCustomHierarchy(t *testing.T) {
	h := NewHierarchy(map[string]string{
		"Cat":    "Animal",
		"Dog":    "Animal",
		"Animal": "Object",
	})
	assert.True(t, h.IsSubtypeOf(Parse("Cat"), Parse("Animal")))
	assert.False(t, h.IsSubtypeOf(Parse("Cat"), Parse("Dog")))
	assert.Equal(t, "Animal", h.LUB(Parse("Cat"), Parse("Dog")).String())
}
