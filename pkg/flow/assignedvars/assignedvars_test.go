package assignedvars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calitho/skiff/pkg/tree"
	"github.com/calitho/skiff/pkg/types"
)

func TestWrittenInRegion(t *testing.T) {
	a := tree.NewArena()
	x := a.NewVariable("x", types.IntType)
	y := a.NewVariable("y", types.IntType)
	loop := a.While(a.BoolLiteral(true), a.Block())

	c := New()
	c.Declare(x)
	c.Declare(y)
	c.BeginNode()
	c.Write(x)
	c.EndNode(loop, false)
	info := c.Finish()

	region := info.Region(loop)
	assert.True(t, region.Written.Contains(x.ID()))
	assert.False(t, region.Written.Contains(y.ID()))
}

func TestDeclaredInsideExcludedFromWritten(t *testing.T) {
	a := tree.NewArena()
	inner := a.NewVariable("inner", types.IntType)
	loop := a.While(a.BoolLiteral(true), a.Block())

	c := New()
	c.BeginNode()
	c.Declare(inner)
	c.Write(inner)
	c.EndNode(loop, false)
	info := c.Finish()

	region := info.Region(loop)
	assert.False(t, region.Written.Contains(inner.ID()),
		"a variable declared inside the region is fresh each entry")
	assert.True(t, region.Declared.Contains(inner.ID()))
}

func TestClosureCapturesReadsAndWrites(t *testing.T) {
	a := tree.NewArena()
	readVar := a.NewVariable("r", types.IntType)
	writeVar := a.NewVariable("w", types.IntType)
	local := a.NewVariable("l", types.IntType)
	closure := a.Closure(a.Block())

	c := New()
	c.Declare(readVar)
	c.Declare(writeVar)
	c.BeginNode()
	c.Read(readVar)
	c.Write(writeVar)
	c.Declare(local)
	c.Read(local)
	c.EndNode(closure, true)
	info := c.Finish()

	region := info.Region(closure)
	assert.True(t, region.Captured.Contains(readVar.ID()), "reads capture")
	assert.True(t, region.Captured.Contains(writeVar.ID()), "writes capture")
	assert.False(t, region.Captured.Contains(local.ID()), "closure locals do not capture")
}

func TestCapturePropagatesToEnclosingRegions(t *testing.T) {
	a := tree.NewArena()
	x := a.NewVariable("x", types.IntType)
	closure := a.Closure(a.Block())
	loop := a.While(a.BoolLiteral(true), a.Block())

	c := New()
	c.Declare(x)
	c.BeginNode() // loop
	c.BeginNode() // closure inside loop
	c.Write(x)
	c.EndNode(closure, true)
	c.EndNode(loop, false)
	info := c.Finish()

	assert.True(t, info.Region(loop).Captured.Contains(x.ID()))
	assert.True(t, info.Region(loop).Written.Contains(x.ID()),
		"closure writes count as writes of the enclosing loop")
	assert.True(t, info.Anywhere().Captured.Contains(x.ID()))
}

func TestUnknownRegionIsEmpty(t *testing.T) {
	a := tree.NewArena()
	loop := a.While(a.BoolLiteral(true), a.Block())

	c := New()
	info := c.Finish()

	region := info.Region(loop)
	require.NotNil(t, region)
	assert.True(t, region.Written.IsEmpty())
	assert.True(t, region.Captured.IsEmpty())
}

func TestMisnestedEndPanics(t *testing.T) {
	a := tree.NewArena()
	loop := a.While(a.BoolLiteral(true), a.Block())

	c := New()
	assert.Panics(t, func() { c.EndNode(loop, false) })
}

func TestFinishWithOpenRegionPanics(t *testing.T) {
	c := New()
	c.BeginNode()
	assert.Panics(t, func() { c.Finish() })
}
