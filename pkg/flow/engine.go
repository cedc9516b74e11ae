// Package flow implements flow-sensitive promotion and definite-assignment
// analysis. The engine is a stack machine driven by a caller performing a
// depth-first traversal that issues paired begin/end calls in strict nesting
// order; it consumes the assignedvars pre-pass summary so loop back-edges and
// closure captures are handled soundly on a single forward pass.
//
// Misnested begin/end calls are caller bugs and panic immediately. Queries for
// nodes the engine never visited return absent results rather than failing.
package flow

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/calitho/skiff/pkg/flow/assignedvars"
	"github.com/calitho/skiff/pkg/tree"
	"github.com/calitho/skiff/pkg/types"
)

type frameKind uint8

const (
	frameIf frameKind = iota
	frameLogical
	frameIfNull
	frameNullAware
	frameLoop
	frameTryCatch
	frameTryFinally
	frameSwitch
	frameFunction
)

var frameNames = map[frameKind]string{
	frameIf:         "if",
	frameLogical:    "logical",
	frameIfNull:     "if-null",
	frameNullAware:  "null-aware",
	frameLoop:       "loop",
	frameTryCatch:   "try/catch",
	frameTryFinally: "try/finally",
	frameSwitch:     "switch",
	frameFunction:   "function",
}

// frame is one entry of the construct stack. The meaning of a and b depends on
// the kind; breakState/continueState accumulate abrupt exits for loop and
// switch frames and stay nil until the first break/continue.
type frame struct {
	kind          frameKind
	node          *tree.Node
	a, b          *State
	breakState    *State
	continueState *State
	region        *assignedvars.RegionInfo
	finallyRegion *assignedvars.RegionInfo
}

type condInfo struct {
	node    *tree.Node
	ifTrue  *State
	ifFalse *State
}

type demotion struct {
	typ    types.Type
	reason NonPromotionReason
}

// Engine is a single-use flow analyzer. It is strictly single-threaded: one
// traversal at a time, terminated by Finish.
type Engine struct {
	ops     types.Operations
	summary *assignedvars.Info
	stats   *Stats

	current *State
	stack   []*frame
	cond    *condInfo

	ssaIntern map[uint64]*SSANode
	freshSSA  uint64

	reasons   map[uint32]map[types.Type]NonPromotionReason
	demotions map[uint32]demotion
	finished  bool
}

// NewEngine creates an engine for one analysis run. summary must come from the
// assignedvars pre-pass over the same tree; stats may be nil.
func NewEngine(ops types.Operations, summary *assignedvars.Info, stats *Stats) *Engine {
	return &Engine{
		ops:       ops,
		summary:   summary,
		stats:     stats,
		current:   newState(),
		ssaIntern: map[uint64]*SSANode{},
		reasons:   map[uint32]map[types.Type]NonPromotionReason{},
		demotions: map[uint32]demotion{},
	}
}

func (e *Engine) push(f *frame) { e.stack = append(e.stack, f) }

func (e *Engine) pop(kind frameKind) *frame {
	if len(e.stack) == 0 {
		panic(fmt.Sprintf("flow: end of %s construct with empty stack", frameNames[kind]))
	}
	f := e.stack[len(e.stack)-1]
	if f.kind != kind {
		panic(fmt.Sprintf("flow: expected %s frame, found %s", frameNames[kind], frameNames[f.kind]))
	}
	e.stack = e.stack[:len(e.stack)-1]
	return f
}

func (e *Engine) peek(kind frameKind) *frame {
	if len(e.stack) == 0 {
		panic(fmt.Sprintf("flow: %s operation with empty stack", frameNames[kind]))
	}
	f := e.stack[len(e.stack)-1]
	if f.kind != kind {
		panic(fmt.Sprintf("flow: expected %s frame, found %s", frameNames[kind], frameNames[f.kind]))
	}
	return f
}

// join merges two states, recording statistics and demotion reasons against
// the given construct node. Either side may be nil (an exit never taken).
func (e *Engine) join(a, b *State, node *tree.Node) *State {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	var dropped []uint32
	out := join(a, b, e.ops, &dropped)
	e.stats.recordJoin(len(dropped))
	for _, id := range dropped {
		p, ok := a.promotions[id]
		if !ok {
			p, ok = b.promotions[id]
		}
		if !ok {
			continue
		}
		e.demotions[id] = demotion{
			typ:    p.current(),
			reason: NonPromotionReason{Kind: ReasonConflictingJoin, Node: node},
		}
	}
	return out
}

// ssaFor interns the SSA node observing expr. Literals of equal spelling and
// type share a node; reading a variable propagates that variable's node; any
// other expression gets a distinct value.
func (e *Engine) ssaFor(expr *tree.Node) *SSANode {
	var key uint64
	switch {
	case expr == nil:
		e.freshSSA++
		key = e.freshSSA | 1<<63
	case expr.Kind == tree.KindLiteral || expr.Kind == tree.KindBoolLiteral:
		key = xxhash.Sum64String("lit|" + expr.Type.String() + "|" + expr.Value)
	case expr.Kind == tree.KindNullLiteral:
		key = xxhash.Sum64String("null")
	case expr.Kind == tree.KindVariableGet:
		if n, ok := e.current.ssa[expr.Variable.ID()]; ok {
			return n
		}
		key = xxhash.Sum64String(fmt.Sprintf("node|%d", expr.ID()))
	default:
		key = xxhash.Sum64String(fmt.Sprintf("node|%d", expr.ID()))
	}
	if n, ok := e.ssaIntern[key]; ok {
		return n
	}
	n := &SSANode{key: key}
	e.ssaIntern[key] = n
	return n
}

// conditionOf consumes the recorded true/false split for a just-visited
// boolean expression. Expressions with no recorded split contribute the
// current state to both branches.
func (e *Engine) conditionOf(n *tree.Node) (ifTrue, ifFalse *State) {
	if e.cond != nil && e.cond.node == n {
		ci := e.cond
		e.cond = nil
		return ci.ifTrue, ci.ifFalse
	}
	return e.current, e.current
}

func (e *Engine) setCondition(n *tree.Node, ifTrue, ifFalse *State) {
	e.cond = &condInfo{node: n, ifTrue: ifTrue, ifFalse: ifFalse}
}

// Declare introduces a variable at the current point.
func (e *Engine) Declare(v *tree.Variable, initialized bool) {
	e.current = e.current.declare(v, initialized, e.ssaFor(nil))
}

// Write records an assignment to v of a value with the given static type,
// observed through writtenExpr (nil when the value has no useful identity).
func (e *Engine) Write(node *tree.Node, v *tree.Variable, writtenType types.Type, writtenExpr *tree.Node) {
	e.stats.recordWrite()
	hadPromotion := false
	var prior types.Type
	if t, ok := e.current.promotedType(v); ok {
		hadPromotion = true
		prior = t
	}
	e.current = e.current.write(v, writtenType, e.ssaFor(writtenExpr), e.ops)
	if _, still := e.current.promotedType(v); hadPromotion && !still {
		e.demotions[v.ID()] = demotion{
			typ:    prior,
			reason: NonPromotionReason{Kind: ReasonDemotedByWrite, Node: node},
		}
	}
	if _, ok := e.current.promotedType(v); ok {
		e.stats.recordPromotion()
	}
}

// VariableRead reports the type v is promoted to at node, if any, and records
// the history needed to answer a later WhyNotPromoted query for node.
func (e *Engine) VariableRead(node *tree.Node, v *tree.Variable) (types.Type, bool) {
	e.stats.recordRead()
	if t, ok := e.current.promotedType(v); ok {
		return t, true
	}
	if e.current.captured.Contains(v.ID()) {
		e.recordReason(node, e.ops.PromoteToNonNull(v.Type), NonPromotionReason{Kind: ReasonWriteCaptured})
	} else if d, ok := e.demotions[v.ID()]; ok {
		e.recordReason(node, d.typ, d.reason)
	}
	return types.Type{}, false
}

// PropertyRead records that node reads the named property. Properties are
// never promoted; when this receiver's property was null-tested on the current
// path, the read keeps a propertyNotPromoted reason for WhyNotPromoted.
func (e *Engine) PropertyRead(node, receiver *tree.Node, member string) {
	if receiver == nil || receiver.Kind != tree.KindVariableGet {
		return
	}
	key := propKey{receiver: receiver.Variable.ID(), member: member}
	if target, ok := e.current.nullChecked[key]; ok {
		e.recordReason(node, target, NonPromotionReason{Kind: ReasonPropertyNotPromoted, Member: member, Node: node})
	}
}

func (e *Engine) recordReason(node *tree.Node, target types.Type, r NonPromotionReason) {
	m, ok := e.reasons[node.ID()]
	if !ok {
		m = map[types.Type]NonPromotionReason{}
		e.reasons[node.ID()] = m
	}
	m[target] = r
}

// WhyNotPromoted returns a lazily evaluated query producing, for each type the
// expression at node could have been promoted to, the reason it was not.
// Querying a node the engine never saw yields an empty map.
func (e *Engine) WhyNotPromoted(node *tree.Node) func() map[types.Type]NonPromotionReason {
	id := node.ID()
	return func() map[types.Type]NonPromotionReason {
		out := map[types.Type]NonPromotionReason{}
		for t, r := range e.reasons[id] {
			out[t] = r
		}
		return out
	}
}

// PromotedType returns v's current promoted type, if promoted.
func (e *Engine) PromotedType(v *tree.Variable) (types.Type, bool) {
	return e.current.promotedType(v)
}

// IsAssigned reports whether v is definitely assigned at the current point.
func (e *Engine) IsAssigned(v *tree.Variable) bool {
	return e.current.assignedAll.Contains(v.ID())
}

// IsUnassigned reports whether v is definitely unassigned at the current point.
func (e *Engine) IsUnassigned(v *tree.Variable) bool {
	return !e.current.assignedAny.Contains(v.ID())
}

// IsReachable reports whether the current point is reachable.
func (e *Engine) IsReachable() bool { return e.current.reachable }

// BooleanLiteral records the trivial condition split for true/false literals.
func (e *Engine) BooleanLiteral(node *tree.Node, value bool) {
	if value {
		e.setCondition(node, e.current, e.current.setUnreachable())
	} else {
		e.setCondition(node, e.current.setUnreachable(), e.current)
	}
}

// EqualsNull handles v == null (or v != null when notEqual). The non-null
// branch promotes v to its non-null variant when that is a sound promotion.
func (e *Engine) EqualsNull(node *tree.Node, v *tree.Variable, notEqual bool) {
	isNull := e.current
	notNull := e.current
	cur := e.current.currentType(v)
	if t, ok := e.ops.TryPromote(cur, e.ops.PromoteToNonNull(cur)); ok {
		notNull = e.current.promote(v, t)
		e.stats.recordPromotion()
	}
	if t, ok := e.ops.TryPromote(cur, types.NullType); ok {
		isNull = e.current.promote(v, t)
	}
	if notEqual {
		e.setCondition(node, notNull, isNull)
	} else {
		e.setCondition(node, isNull, notNull)
	}
}

// PropertyEqualsNull handles a null test whose target is a property access.
// No promotion occurs; on the branch where the property is known non-null,
// the receiver and member are remembered so later reads can explain
// themselves through WhyNotPromoted. Receivers without a stable identity
// record nothing.
func (e *Engine) PropertyEqualsNull(node, receiver *tree.Node, member string, staticType types.Type, notEqual bool) {
	checked := e.current
	if receiver != nil && receiver.Kind == tree.KindVariableGet {
		key := propKey{receiver: receiver.Variable.ID(), member: member}
		checked = e.current.checkNonNullProperty(key, e.ops.PromoteToNonNull(staticType))
	}
	if notEqual {
		e.setCondition(node, checked, e.current)
	} else {
		e.setCondition(node, e.current, checked)
	}
}

// IsExpression handles v is T (negated: v is! T). The matching branch promotes
// to the tested type when sound; the other branch factors the tested type out.
func (e *Engine) IsExpression(node *tree.Node, v *tree.Variable, testedType types.Type, negated bool) {
	match := e.current
	noMatch := e.current
	cur := e.current.currentType(v)
	if e.current.captured.Contains(v.ID()) {
		e.recordReason(node, testedType, NonPromotionReason{Kind: ReasonWriteCaptured, Node: node})
	} else {
		if t, ok := e.ops.TryPromote(cur, testedType); ok {
			match = e.current.promote(v, t)
			e.stats.recordPromotion()
		}
		factored := e.ops.Factor(cur, testedType)
		if t, ok := e.ops.TryPromote(cur, factored); ok {
			noMatch = e.current.promote(v, t)
		}
	}
	if negated {
		e.setCondition(node, noMatch, match)
	} else {
		e.setCondition(node, match, noMatch)
	}
}

// AsExpression handles v as T: an unconditional promotion on the fall-through
// path when sound.
func (e *Engine) AsExpression(v *tree.Variable, castType types.Type) {
	cur := e.current.currentType(v)
	if t, ok := e.ops.TryPromote(cur, castType); ok && !e.current.captured.Contains(v.ID()) {
		e.current = e.current.promote(v, t)
		e.stats.recordPromotion()
	}
}

// NotExpression swaps the condition split of its operand.
func (e *Engine) NotExpression(node *tree.Node, operand *tree.Node) {
	ifTrue, ifFalse := e.conditionOf(operand)
	e.setCondition(node, ifFalse, ifTrue)
}

// IfBegin enters the then branch of an if whose condition was just visited.
func (e *Engine) IfBegin(node *tree.Node, cond *tree.Node) {
	ifTrue, ifFalse := e.conditionOf(cond)
	e.push(&frame{kind: frameIf, node: node, a: ifFalse})
	e.current = ifTrue
}

// IfElseBegin switches from the then branch to the else branch.
func (e *Engine) IfElseBegin() {
	f := e.peek(frameIf)
	thenEnd := e.current
	e.current = f.a
	f.a = thenEnd
}

// IfEnd joins the branches. With no else, the then end joins the false
// condition state.
func (e *Engine) IfEnd(hasElse bool) {
	f := e.pop(frameIf)
	if hasElse {
		e.current = e.join(f.a, e.current, f.node)
	} else {
		e.current = e.join(e.current, f.a, f.node)
	}
}

// LogicalRightBegin enters the right operand of && or ||, under the state
// where the left operand already decided short-circuit was not taken.
func (e *Engine) LogicalRightBegin(left *tree.Node, isAnd bool) {
	ifTrue, ifFalse := e.conditionOf(left)
	if isAnd {
		e.push(&frame{kind: frameLogical, a: ifFalse})
		e.current = ifTrue
	} else {
		e.push(&frame{kind: frameLogical, a: ifTrue})
		e.current = ifFalse
	}
}

// LogicalEnd completes && or ||, preserving exact short-circuit semantics.
func (e *Engine) LogicalEnd(node *tree.Node, right *tree.Node, isAnd bool) {
	rightTrue, rightFalse := e.conditionOf(right)
	f := e.pop(frameLogical)
	var ifTrue, ifFalse *State
	if isAnd {
		ifTrue = rightTrue
		ifFalse = e.join(f.a, rightFalse, node)
	} else {
		ifTrue = e.join(f.a, rightTrue, node)
		ifFalse = rightFalse
	}
	e.current = e.join(ifTrue, ifFalse, node)
	e.setCondition(node, ifTrue, ifFalse)
}

// IfNullRightBegin enters the right operand of ??, evaluated only when the
// left operand was null. When the left operand is a variable read, the saved
// short-circuit state carries its non-null promotion.
func (e *Engine) IfNullRightBegin(left *tree.Node) {
	shortCircuit := e.current
	if left.Kind == tree.KindVariableGet {
		v := left.Variable
		cur := e.current.currentType(v)
		if t, ok := e.ops.TryPromote(cur, e.ops.PromoteToNonNull(cur)); ok {
			shortCircuit = e.current.promote(v, t)
		}
	}
	e.push(&frame{kind: frameIfNull, a: shortCircuit})
	if left.Kind == tree.KindVariableGet {
		v := left.Variable
		cur := e.current.currentType(v)
		if t, ok := e.ops.TryPromote(cur, types.NullType); ok {
			e.current = e.current.promote(v, t)
		}
	}
}

// IfNullEnd completes ?? and returns the result's static type:
// LUB(nonNull(leftType), rightType).
func (e *Engine) IfNullEnd(node *tree.Node, leftType, rightType types.Type) types.Type {
	f := e.pop(frameIfNull)
	e.current = e.join(f.a, e.current, node)
	return e.ops.LUB(e.ops.PromoteToNonNull(leftType), rightType)
}

// NullAwareBegin enters the access chain of receiver?.member: the chain is
// evaluated under "receiver is non-null", with the receiver-was-null state
// saved for the join at the end.
func (e *Engine) NullAwareBegin(receiver *tree.Node) {
	e.push(&frame{kind: frameNullAware, a: e.current})
	if receiver.Kind == tree.KindVariableGet {
		v := receiver.Variable
		cur := e.current.currentType(v)
		if t, ok := e.ops.TryPromote(cur, e.ops.PromoteToNonNull(cur)); ok {
			e.current = e.current.promote(v, t)
		}
	}
}

// NullAwareEnd completes receiver?.member and returns the result type:
// LUB(accessType, Null), or the access type unchanged inside a cascade, which
// reuses the receiver without re-narrowing.
func (e *Engine) NullAwareEnd(node *tree.Node, accessType types.Type, cascade bool) types.Type {
	f := e.pop(frameNullAware)
	e.current = e.join(f.a, e.current, node)
	if cascade {
		return accessType
	}
	return e.ops.LUB(accessType, types.NullType)
}

// loopBegin applies the back-edge pre-invalidation: every variable the summary
// says is written anywhere in the loop loses its promotion before the body is
// even visited, and captured variables become write-captured.
func (e *Engine) loopBegin(kind frameKind, node *tree.Node) *frame {
	region := e.summary.Region(node)
	e.current = e.current.conservativeJoin(region.Written, region.Captured)
	f := &frame{kind: kind, node: node, region: region}
	e.push(f)
	return f
}

// WhileBegin enters a while loop, before the condition is visited.
func (e *Engine) WhileBegin(node *tree.Node) {
	e.loopBegin(frameLoop, node)
}

// WhileBodyBegin enters the loop body once the condition has been visited.
func (e *Engine) WhileBodyBegin(cond *tree.Node) {
	ifTrue, ifFalse := e.conditionOf(cond)
	f := e.peek(frameLoop)
	f.a = ifFalse
	e.current = ifTrue
}

// WhileEnd leaves the loop: the exit state joins the false-condition state
// with every break target.
func (e *Engine) WhileEnd() {
	f := e.pop(frameLoop)
	e.current = e.join(f.a, f.breakState, f.node)
}

// DoBegin enters a do/while loop body.
func (e *Engine) DoBegin(node *tree.Node) {
	e.loopBegin(frameLoop, node)
}

// DoCondBegin moves from the body to the condition, joining continue targets.
func (e *Engine) DoCondBegin() {
	f := e.peek(frameLoop)
	e.current = e.join(e.current, f.continueState, f.node)
}

// DoEnd leaves the loop.
func (e *Engine) DoEnd(cond *tree.Node) {
	_, ifFalse := e.conditionOf(cond)
	f := e.pop(frameLoop)
	e.current = e.join(ifFalse, f.breakState, f.node)
}

// ForBegin enters a for loop, after the initializer but before the condition.
func (e *Engine) ForBegin(node *tree.Node) {
	e.loopBegin(frameLoop, node)
}

// ForBodyBegin enters the body; cond may be nil for an infinite loop header.
func (e *Engine) ForBodyBegin(cond *tree.Node) {
	f := e.peek(frameLoop)
	if cond != nil {
		ifTrue, ifFalse := e.conditionOf(cond)
		f.a = ifFalse
		e.current = ifTrue
	} else {
		f.a = e.current.setUnreachable()
	}
}

// ForUpdateBegin moves from the body to the update clause, joining continues.
func (e *Engine) ForUpdateBegin() {
	f := e.peek(frameLoop)
	e.current = e.join(e.current, f.continueState, f.node)
}

// ForEnd leaves the loop.
func (e *Engine) ForEnd() {
	f := e.pop(frameLoop)
	e.current = e.join(f.a, f.breakState, f.node)
}

// ForEachBegin enters a for-each loop after the iterable was visited. The loop
// variable, if any, is definitely assigned inside the body only.
func (e *Engine) ForEachBegin(node *tree.Node, v *tree.Variable) {
	f := e.loopBegin(frameLoop, node)
	f.a = e.current // zero-iterations exit state
	if v != nil {
		e.current = e.current.write(v, v.Type, e.ssaFor(nil), e.ops)
	}
}

// ForEachEnd leaves the loop; the exit joins the zero-iterations state with
// break targets.
func (e *Engine) ForEachEnd() {
	f := e.pop(frameLoop)
	e.current = e.join(f.a, f.breakState, f.node)
}

// HandleBreak records a break targeting the innermost loop or switch.
func (e *Engine) HandleBreak() {
	for i := len(e.stack) - 1; i >= 0; i-- {
		f := e.stack[i]
		if f.kind == frameLoop || f.kind == frameSwitch {
			f.breakState = e.join(f.breakState, e.current, f.node)
			e.current = e.current.setUnreachable()
			return
		}
	}
	panic("flow: break with no enclosing loop or switch")
}

// HandleContinue records a continue targeting the innermost loop.
func (e *Engine) HandleContinue() {
	for i := len(e.stack) - 1; i >= 0; i-- {
		f := e.stack[i]
		if f.kind == frameLoop {
			f.continueState = e.join(f.continueState, e.current, f.node)
			e.current = e.current.setUnreachable()
			return
		}
	}
	panic("flow: continue with no enclosing loop")
}

// HandleExit records a return or throw: the point after it is unreachable.
func (e *Engine) HandleExit() {
	e.current = e.current.setUnreachable()
}

// TryCatchBegin enters the body of a try with catch clauses.
func (e *Engine) TryCatchBegin(node *tree.Node) {
	e.push(&frame{
		kind:   frameTryCatch,
		node:   node,
		a:      e.current,
		region: e.summary.Region(node),
	})
}

// TryBodyEnd leaves the try body. Catch clauses begin from the pre-try state
// widened by everything the body might have partially done: variables written
// in the body are only possibly assigned there, never definitely.
func (e *Engine) TryBodyEnd() {
	f := e.peek(frameTryCatch)
	f.b = e.current
	f.a = f.a.conservativeJoin(f.region.Written, f.region.Captured)
}

// CatchBegin enters a catch clause.
func (e *Engine) CatchBegin() {
	f := e.peek(frameTryCatch)
	e.current = f.a
}

// CatchEnd leaves a catch clause, folding its completion into the after-try
// state.
func (e *Engine) CatchEnd() {
	f := e.peek(frameTryCatch)
	f.b = e.join(f.b, e.current, f.node)
}

// TryCatchEnd completes the try statement.
func (e *Engine) TryCatchEnd() {
	f := e.pop(frameTryCatch)
	e.current = f.b
}

// TryFinallyBegin enters the body of a try with a finally clause.
func (e *Engine) TryFinallyBegin(node *tree.Node) {
	e.push(&frame{
		kind:   frameTryFinally,
		node:   node,
		a:      e.current,
		region: e.summary.Region(node),
	})
}

// FinallyBegin moves from the body to the finally clause. The clause begins
// from the join of the normal completion with every abnormal exit, the latter
// approximated by the pre-try state widened by the body's written set. The
// normal completion is saved so TryFinallyEnd can re-attach it.
func (e *Engine) FinallyBegin(finallyNode *tree.Node) {
	f := e.peek(frameTryFinally)
	f.b = e.current
	f.finallyRegion = e.summary.Region(finallyNode)
	abrupt := f.a.conservativeJoin(f.region.Written, f.region.Captured)
	e.current = e.join(e.current, abrupt, f.node)
}

// TryFinallyEnd completes the statement. Control only gets past it by
// completing the body normally and then the finally clause, so the
// continuation re-attaches the normal-completion facts on top of the clause's
// own effects.
func (e *Engine) TryFinallyEnd() {
	f := e.pop(frameTryFinally)
	e.current = e.current.attachFinally(f.b, f.finallyRegion.Written, f.finallyRegion.Captured)
}

// SwitchBegin enters a switch whose scrutinee was just visited.
func (e *Engine) SwitchBegin(node *tree.Node) {
	e.push(&frame{kind: frameSwitch, node: node, a: e.current})
	e.current = e.current.setUnreachable()
}

// SwitchCaseBegin enters the next case: the join of the expression state with
// the fallthrough from the previous case, when that case could complete.
func (e *Engine) SwitchCaseBegin() {
	f := e.peek(frameSwitch)
	e.current = e.join(e.current, f.a, f.node)
}

// SwitchEnd completes the switch. When the cases are exhaustive and there is
// no default, the point after the switch is reachable only through explicit
// per-case completion or break, never through an implicit no-match path.
func (e *Engine) SwitchEnd(exhaustive bool) {
	f := e.pop(frameSwitch)
	after := e.join(e.current, f.breakState, f.node)
	if !exhaustive {
		after = e.join(after, f.a, f.node)
	}
	e.current = after
}

// FunctionBegin enters a function literal. Variables the summary says the
// closure references become write-captured in the enclosing flow from this
// point on, whether or not the closure ever runs; the body itself starts from
// a state where anything any closure might have done already happened.
func (e *Engine) FunctionBegin(node *tree.Node) {
	region := e.summary.Region(node)
	e.current = e.current.capture(region.Captured, region.Written)
	e.push(&frame{kind: frameFunction, node: node, a: e.current, region: region})
	anywhere := e.summary.Anywhere()
	e.current = e.current.conservativeJoin(anywhere.Written, anywhere.Captured)
}

// FunctionEnd leaves a function literal, restoring the enclosing flow.
func (e *Engine) FunctionEnd() {
	f := e.pop(frameFunction)
	e.current = f.a
}

// Finish terminates the traversal. It panics when any construct is still
// open, since that means the caller's begin/end discipline is broken.
func (e *Engine) Finish() {
	if e.finished {
		panic("flow: Finish called twice")
	}
	if len(e.stack) != 0 {
		panic(fmt.Sprintf("flow: Finish with %d unclosed constructs (innermost: %s)",
			len(e.stack), frameNames[e.stack[len(e.stack)-1].kind]))
	}
	e.finished = true
}
