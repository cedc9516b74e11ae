package flow

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/calitho/skiff/pkg/tree"
	"github.com/calitho/skiff/pkg/types"
)

// SSANode identifies "the value observed at this point" for a variable. Two
// program points that hold the same SSANode are known to observe the same
// underlying value, which is what lets a promotion survive a join. Nodes are
// interned by value fingerprint, so two branches assigning the same literal
// share a node, while distinct values get distinct nodes.
type SSANode struct {
	key uint64
}

// promotion is the narrowing history for one variable on one path. The last
// element of chain is the current promoted type; earlier elements are the
// evidence trail of successively tighter tests.
type promotion struct {
	chain []types.Type
}

func (p *promotion) current() types.Type { return p.chain[len(p.chain)-1] }

func (p *promotion) push(t types.Type) *promotion {
	chain := make([]types.Type, len(p.chain)+1)
	copy(chain, p.chain)
	chain[len(p.chain)] = t
	return &promotion{chain: chain}
}

// propKey identifies a property access for the null-check memory: the
// receiver variable plus the member name.
type propKey struct {
	receiver uint32
	member   string
}

// State is the abstract state at a single program point. States are immutable:
// every operation derives a new state, and callers may rely on reference
// equality to short-circuit redundant joins.
type State struct {
	reachable   bool
	assignedAll *roaring.Bitmap // definitely assigned on every path
	assignedAny *roaring.Bitmap // possibly assigned on some path
	captured    *roaring.Bitmap // write-captured from this point on
	promotions  map[uint32]*promotion
	ssa         map[uint32]*SSANode
	nullChecked map[propKey]types.Type
}

func newState() *State {
	return &State{
		reachable:   true,
		assignedAll: roaring.New(),
		assignedAny: roaring.New(),
		captured:    roaring.New(),
		promotions:  map[uint32]*promotion{},
		ssa:         map[uint32]*SSANode{},
		nullChecked: map[propKey]types.Type{},
	}
}

// Reachable reports whether the program point is reachable.
func (s *State) Reachable() bool { return s.reachable }

func (s *State) clone() *State {
	c := &State{
		reachable:   s.reachable,
		assignedAll: s.assignedAll.Clone(),
		assignedAny: s.assignedAny.Clone(),
		captured:    s.captured.Clone(),
		promotions:  make(map[uint32]*promotion, len(s.promotions)),
		ssa:         make(map[uint32]*SSANode, len(s.ssa)),
		nullChecked: make(map[propKey]types.Type, len(s.nullChecked)),
	}
	for k, v := range s.promotions {
		c.promotions[k] = v
	}
	for k, v := range s.ssa {
		c.ssa[k] = v
	}
	for k, v := range s.nullChecked {
		c.nullChecked[k] = v
	}
	return c
}

func (s *State) setUnreachable() *State {
	if !s.reachable {
		return s
	}
	c := s.clone()
	c.reachable = false
	return c
}

// promotedType returns the variable's current promoted type, if any.
func (s *State) promotedType(v *tree.Variable) (types.Type, bool) {
	if p, ok := s.promotions[v.ID()]; ok {
		return p.current(), true
	}
	return types.Type{}, false
}

// currentType returns the promoted type if present, else the declared type.
func (s *State) currentType(v *tree.Variable) types.Type {
	if t, ok := s.promotedType(v); ok {
		return t
	}
	return v.Type
}

// declare introduces v. An initialized declaration is a definite assignment
// observing the given value.
func (s *State) declare(v *tree.Variable, initialized bool, node *SSANode) *State {
	c := s.clone()
	if initialized {
		c.assignedAll.Add(v.ID())
		c.assignedAny.Add(v.ID())
		c.ssa[v.ID()] = node
	}
	return c
}

// write records an assignment of a value of type writtenType observed as node.
// The prior promotion never survives a write; if the written type is a proper
// subtype of the declared type the variable is re-promoted to it directly.
func (s *State) write(v *tree.Variable, writtenType types.Type, node *SSANode, ops types.Operations) *State {
	c := s.clone()
	id := v.ID()
	c.assignedAll.Add(id)
	c.assignedAny.Add(id)
	c.ssa[id] = node
	delete(c.promotions, id)
	for k := range c.nullChecked {
		if k.receiver == id {
			delete(c.nullChecked, k)
		}
	}
	if !c.captured.Contains(id) {
		if t, ok := ops.TryPromote(v.Type, writtenType); ok {
			c.promotions[id] = &promotion{chain: []types.Type{t}}
		}
	}
	return c
}

// promote narrows v to t, stacking on any existing promotion. Callers must
// have checked soundness via the lattice first.
func (s *State) promote(v *tree.Variable, t types.Type) *State {
	id := v.ID()
	if s.captured.Contains(id) {
		return s
	}
	c := s.clone()
	if p, ok := c.promotions[id]; ok {
		c.promotions[id] = p.push(t)
	} else {
		c.promotions[id] = &promotion{chain: []types.Type{t}}
	}
	return c
}

// checkNonNullProperty records that a property access was observed non-null on
// this path. The memory only feeds WhyNotPromoted; the property itself is
// never promoted.
func (s *State) checkNonNullProperty(key propKey, target types.Type) *State {
	c := s.clone()
	c.nullChecked[key] = target
	return c
}

// dropChecksFor removes null-check memory for every receiver in vars. Only
// called on freshly cloned states.
func (s *State) dropChecksFor(vars *roaring.Bitmap) {
	for k := range s.nullChecked {
		if vars.Contains(k.receiver) {
			delete(s.nullChecked, k)
		}
	}
}

// capture marks every variable in vars write-captured from this point on and
// discards their promotions for the rest of the scope. The capturing closure
// may run at any time after its definition, so the variables it writes are
// possibly assigned from here on.
func (s *State) capture(vars, written *roaring.Bitmap) *State {
	if vars.IsEmpty() {
		return s
	}
	c := s.clone()
	c.captured.Or(vars)
	c.assignedAny.Or(written)
	it := vars.Iterator()
	for it.HasNext() {
		id := it.Next()
		delete(c.promotions, id)
		delete(c.ssa, id)
	}
	c.dropChecksFor(vars)
	return c
}

// conservativeJoin widens the state for a region whose interior is not yet (or
// not precisely) known: every variable in written loses its promotion and value
// identity and becomes merely possibly assigned, and every variable in captured
// becomes write-captured. Used at loop entries (back-edge effects), try bodies
// (partial completion), and closure boundaries.
func (s *State) conservativeJoin(written, captured *roaring.Bitmap) *State {
	if written.IsEmpty() && captured.IsEmpty() {
		return s
	}
	c := s.clone()
	it := written.Iterator()
	for it.HasNext() {
		id := it.Next()
		delete(c.promotions, id)
		delete(c.ssa, id)
		c.assignedAny.Add(id)
	}
	c.captured.Or(captured)
	it = captured.Iterator()
	for it.HasNext() {
		id := it.Next()
		delete(c.promotions, id)
		delete(c.ssa, id)
	}
	c.dropChecksFor(written)
	c.dropChecksFor(captured)
	return c
}

// attachFinally rebuilds the state after a try/finally statement. Control
// continues past the statement only when the body completed normally, so the
// normal-completion facts re-attach on top of the finally clause's own
// effects; variables the clause wrote or captured keep the clause's view.
func (s *State) attachFinally(normal *State, clauseWritten, clauseCaptured *roaring.Bitmap) *State {
	c := s.clone()
	c.reachable = s.reachable && normal.reachable
	c.assignedAll.Or(normal.assignedAll)
	touched := func(id uint32) bool {
		return clauseWritten.Contains(id) || clauseCaptured.Contains(id) || c.captured.Contains(id)
	}
	for id, n := range normal.ssa {
		if _, ok := c.ssa[id]; !ok && !touched(id) {
			c.ssa[id] = n
		}
	}
	for id, p := range normal.promotions {
		if _, ok := c.promotions[id]; !ok && !touched(id) {
			c.promotions[id] = p
		}
	}
	for k, t := range normal.nullChecked {
		if _, ok := c.nullChecked[k]; !ok && !touched(k.receiver) {
			c.nullChecked[k] = t
		}
	}
	return c
}

// join merges two control-flow paths. Reachability joins with OR, definite
// assignment with intersection, possible assignment with union. A promotion
// survives only when both sides agree on the promoted type and observe the
// same SSA value; demoted variable ids are appended to dropped for the caller
// to record non-promotion reasons.
func join(a, b *State, ops types.Operations, dropped *[]uint32) *State {
	if a == b {
		return a
	}
	if !a.reachable && !b.reachable {
		return a
	}
	if !a.reachable {
		return b
	}
	if !b.reachable {
		return a
	}

	c := &State{
		reachable:   true,
		assignedAll: roaring.And(a.assignedAll, b.assignedAll),
		assignedAny: roaring.Or(a.assignedAny, b.assignedAny),
		captured:    roaring.Or(a.captured, b.captured),
		promotions:  map[uint32]*promotion{},
		ssa:         map[uint32]*SSANode{},
		nullChecked: map[propKey]types.Type{},
	}

	for k, ta := range a.nullChecked {
		if tb, ok := b.nullChecked[k]; ok && ops.IsSameType(ta, tb) {
			c.nullChecked[k] = ta
		}
	}

	for id, node := range a.ssa {
		if b.ssa[id] == node {
			c.ssa[id] = node
		}
	}

	for id, pa := range a.promotions {
		pb, ok := b.promotions[id]
		if !ok {
			if dropped != nil {
				*dropped = append(*dropped, id)
			}
			continue
		}
		if c.captured.Contains(id) {
			continue
		}
		sameType := ops.IsSameType(pa.current(), pb.current())
		sameValue := c.ssa[id] != nil
		if sameType && sameValue {
			c.promotions[id] = pa
		} else if dropped != nil {
			*dropped = append(*dropped, id)
		}
	}
	if dropped != nil {
		for id := range b.promotions {
			if _, ok := a.promotions[id]; !ok {
				*dropped = append(*dropped, id)
			}
		}
	}
	return c
}
