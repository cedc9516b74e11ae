// Package assignedvars implements the pre-pass that the flow engine consumes.
// It makes a single forward traversal over a function body and records, for
// every region the engine later treats as a join boundary (loop bodies, try
// bodies, switches, closures), which variables are written inside it, which are
// declared inside it, and which are captured by a nested closure.
//
// Capture is by possibility, not by execution: a variable referenced anywhere
// inside a closure is flagged captured from the point the closure is defined
// onward, even on paths that never invoke it.
package assignedvars

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/calitho/skiff/pkg/tree"
)

// RegionInfo is the immutable summary for one region.
type RegionInfo struct {
	// Written holds variables assigned textually inside the region, excluding
	// variables declared inside it.
	Written *roaring.Bitmap

	// Declared holds variables declared inside the region.
	Declared *roaring.Bitmap

	// Captured holds variables referenced inside a closure nested in the
	// region, excluding variables declared inside the region.
	Captured *roaring.Bitmap
}

var emptyRegion = &RegionInfo{
	Written:  roaring.New(),
	Declared: roaring.New(),
	Captured: roaring.New(),
}

// Info is the completed summary, built once per analysis run and then read
// many times by the flow engine.
type Info struct {
	regions  map[uint32]*RegionInfo
	anywhere *RegionInfo
}

// Region returns the summary for a region node. Nodes the collector never saw
// yield an empty summary rather than an error.
func (i *Info) Region(n *tree.Node) *RegionInfo {
	if r, ok := i.regions[n.ID()]; ok {
		return r
	}
	return emptyRegion
}

// Anywhere returns the whole-unit aggregate summary.
func (i *Info) Anywhere() *RegionInfo { return i.anywhere }

type region struct {
	written  *roaring.Bitmap
	read     *roaring.Bitmap
	declared *roaring.Bitmap
	captured *roaring.Bitmap
}

func newRegion() *region {
	return &region{
		written:  roaring.New(),
		read:     roaring.New(),
		declared: roaring.New(),
		captured: roaring.New(),
	}
}

// Collector accumulates the summary during the pre-pass. Begin/End calls must
// nest exactly like the traversal that will later drive the flow engine.
type Collector struct {
	stack []*region
	info  map[uint32]*RegionInfo
}

// New returns a collector with the implicit whole-unit region open.
func New() *Collector {
	return &Collector{stack: []*region{newRegion()}, info: make(map[uint32]*RegionInfo)}
}

func (c *Collector) top() *region { return c.stack[len(c.stack)-1] }

// BeginNode opens a region. The matching EndNode names the region's node.
func (c *Collector) BeginNode() {
	c.stack = append(c.stack, newRegion())
}

// EndNode closes the innermost region and records it for node. When the region
// is a closure body (or a late-variable initializer), every variable it reads
// or writes becomes captured in the enclosing scopes.
func (c *Collector) EndNode(node *tree.Node, isClosureOrLateInit bool) {
	if len(c.stack) < 2 {
		panic("assignedvars: EndNode without matching BeginNode")
	}
	r := c.top()
	c.stack = c.stack[:len(c.stack)-1]

	written := roaring.AndNot(r.written, r.declared)
	captured := roaring.AndNot(r.captured, r.declared)
	if isClosureOrLateInit {
		referenced := roaring.Or(r.read, r.written)
		captured.Or(roaring.AndNot(referenced, r.declared))
	}

	c.info[node.ID()] = &RegionInfo{
		Written:  written,
		Declared: r.declared,
		Captured: captured,
	}

	parent := c.top()
	parent.written.Or(written)
	parent.read.Or(roaring.AndNot(r.read, r.declared))
	parent.captured.Or(captured)
}

// Declare records that v is declared in the innermost region.
func (c *Collector) Declare(v *tree.Variable) {
	c.top().declared.Add(v.ID())
}

// Read records a read of v.
func (c *Collector) Read(v *tree.Variable) {
	c.top().read.Add(v.ID())
}

// Write records an assignment to v.
func (c *Collector) Write(v *tree.Variable) {
	c.top().written.Add(v.ID())
}

// Finish seals the summary. It panics if any BeginNode is still open.
func (c *Collector) Finish() *Info {
	if len(c.stack) != 1 {
		panic("assignedvars: Finish with unclosed regions")
	}
	r := c.stack[0]
	return &Info{
		regions: c.info,
		anywhere: &RegionInfo{
			Written:  r.written.Clone(),
			Declared: r.declared.Clone(),
			Captured: r.captured.Clone(),
		},
	}
}
