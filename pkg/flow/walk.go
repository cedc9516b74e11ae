package flow

import (
	"fmt"

	"github.com/calitho/skiff/pkg/flow/assignedvars"
	"github.com/calitho/skiff/pkg/tree"
	"github.com/calitho/skiff/pkg/types"
)

// analyzeConfig carries Analyze options.
type analyzeConfig struct {
	params []*tree.Variable
	stats  *Stats
	probe  func(stmt *tree.Node, e *Engine)
}

// AnalyzeOption is a functional option for Analyze.
type AnalyzeOption func(*analyzeConfig)

// WithParams declares the given variables as initialized at entry.
func WithParams(vars ...*tree.Variable) AnalyzeOption {
	return func(c *analyzeConfig) { c.params = vars }
}

// WithStats directs run counters into stats.
func WithStats(stats *Stats) AnalyzeOption {
	return func(c *analyzeConfig) { c.stats = stats }
}

// WithProbe invokes probe before each statement is visited, with the engine
// positioned at the statement's entry point. Used by callers that interleave
// their own checks with the traversal.
func WithProbe(probe func(stmt *tree.Node, e *Engine)) AnalyzeOption {
	return func(c *analyzeConfig) { c.probe = probe }
}

// Analyze runs both passes over a function body: the assignedvars pre-pass,
// then the flow engine pass. It returns the finished engine, whose query
// surface (PromotedType, IsAssigned, WhyNotPromoted, ...) reflects the state
// at the end of the body.
func Analyze(root *tree.Node, ops types.Operations, opts ...AnalyzeOption) *Engine {
	cfg := &analyzeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	collector := assignedvars.New()
	for _, v := range cfg.params {
		collector.Declare(v)
	}
	collectStmt(collector, root)
	summary := collector.Finish()

	eng := NewEngine(ops, summary, cfg.stats)
	for _, v := range cfg.params {
		eng.Declare(v, true)
	}
	w := &walker{eng: eng, probe: cfg.probe}
	w.stmt(root)
	eng.Finish()
	return eng
}

// collectStmt is the pre-pass statement traversal. Region boundaries here must
// mirror the engine traversal exactly.
func collectStmt(c *assignedvars.Collector, n *tree.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case tree.KindBlock:
		for _, s := range n.Stmts {
			collectStmt(c, s)
		}
	case tree.KindExpressionStatement:
		collectExpr(c, n.RHS)
	case tree.KindVariableDeclaration:
		collectExpr(c, n.Init)
		c.Declare(n.Variable)
		if n.Init != nil {
			c.Write(n.Variable)
		}
	case tree.KindIf:
		collectExpr(c, n.Cond)
		collectStmt(c, n.Body)
		collectStmt(c, n.Else)
	case tree.KindWhile:
		c.BeginNode()
		collectExpr(c, n.Cond)
		collectStmt(c, n.Body)
		c.EndNode(n, false)
	case tree.KindDoWhile:
		c.BeginNode()
		collectStmt(c, n.Body)
		collectExpr(c, n.Cond)
		c.EndNode(n, false)
	case tree.KindFor:
		collectStmt(c, n.Init)
		c.BeginNode()
		collectExpr(c, n.Cond)
		collectExpr(c, n.Update)
		collectStmt(c, n.Body)
		c.EndNode(n, false)
	case tree.KindForEach:
		collectExpr(c, n.RHS)
		c.BeginNode()
		if n.Variable != nil {
			c.Write(n.Variable)
		}
		collectStmt(c, n.Body)
		c.EndNode(n, false)
	case tree.KindTry:
		c.BeginNode()
		c.BeginNode()
		collectStmt(c, n.Body)
		c.EndNode(n.Body, false)
		for _, cl := range n.Catches {
			collectStmt(c, cl.Body)
		}
		c.EndNode(n, false)
		if n.Finally != nil {
			c.BeginNode()
			collectStmt(c, n.Finally)
			c.EndNode(n.Finally, false)
		}
	case tree.KindSwitch:
		collectExpr(c, n.RHS)
		for _, cs := range n.Cases {
			for _, s := range cs.Stmts {
				collectStmt(c, s)
			}
		}
	case tree.KindBreak, tree.KindContinue, tree.KindReturn, tree.KindThrow:
	case tree.KindClosure:
		c.BeginNode()
		collectStmt(c, n.Body)
		c.EndNode(n, true)
	default:
		if !n.IsStatement() {
			collectExpr(c, n)
			return
		}
		panic(fmt.Sprintf("flow: unhandled statement kind %s in pre-pass", n.Kind))
	}
}

func collectExpr(c *assignedvars.Collector, n *tree.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case tree.KindLiteral, tree.KindBoolLiteral, tree.KindNullLiteral:
	case tree.KindVariableGet:
		c.Read(n.Variable)
	case tree.KindAssign:
		collectExpr(c, n.RHS)
		c.Write(n.Variable)
	case tree.KindPropertyGet, tree.KindNullAwareAccess:
		collectExpr(c, n.Receiver)
	case tree.KindNullCoalesce, tree.KindLogicalAnd, tree.KindLogicalOr:
		collectExpr(c, n.Left)
		collectExpr(c, n.Right)
	case tree.KindNot:
		collectExpr(c, n.RHS)
	case tree.KindIsTest, tree.KindAsCast:
		c.Read(n.Variable)
	case tree.KindEqualsNull:
		if n.Variable != nil {
			c.Read(n.Variable)
		} else {
			collectExpr(c, n.Receiver)
		}
	default:
		panic(fmt.Sprintf("flow: unhandled expression kind %s in pre-pass", n.Kind))
	}
}

// walker is the engine-driving traversal.
type walker struct {
	eng   *Engine
	probe func(stmt *tree.Node, e *Engine)
}

func (w *walker) stmt(n *tree.Node) {
	if n == nil {
		return
	}
	if w.probe != nil {
		w.probe(n, w.eng)
	}
	switch n.Kind {
	case tree.KindBlock:
		for _, s := range n.Stmts {
			w.stmt(s)
		}
	case tree.KindExpressionStatement:
		w.expr(n.RHS)
	case tree.KindVariableDeclaration:
		w.eng.Declare(n.Variable, false)
		if n.Init != nil {
			t := w.expr(n.Init)
			w.eng.Write(n, n.Variable, t, n.Init)
		}
	case tree.KindIf:
		w.expr(n.Cond)
		w.eng.IfBegin(n, n.Cond)
		w.stmt(n.Body)
		if n.Else != nil {
			w.eng.IfElseBegin()
			w.stmt(n.Else)
		}
		w.eng.IfEnd(n.Else != nil)
	case tree.KindWhile:
		w.eng.WhileBegin(n)
		w.expr(n.Cond)
		w.eng.WhileBodyBegin(n.Cond)
		w.stmt(n.Body)
		w.eng.WhileEnd()
	case tree.KindDoWhile:
		w.eng.DoBegin(n)
		w.stmt(n.Body)
		w.eng.DoCondBegin()
		w.expr(n.Cond)
		w.eng.DoEnd(n.Cond)
	case tree.KindFor:
		w.stmt(n.Init)
		w.eng.ForBegin(n)
		if n.Cond != nil {
			w.expr(n.Cond)
		}
		w.eng.ForBodyBegin(n.Cond)
		w.stmt(n.Body)
		w.eng.ForUpdateBegin()
		if n.Update != nil {
			w.expr(n.Update)
		}
		w.eng.ForEnd()
	case tree.KindForEach:
		w.expr(n.RHS)
		w.eng.ForEachBegin(n, n.Variable)
		w.stmt(n.Body)
		w.eng.ForEachEnd()
	case tree.KindTry:
		w.try(n)
	case tree.KindSwitch:
		w.expr(n.RHS)
		w.eng.SwitchBegin(n)
		for _, cs := range n.Cases {
			w.eng.SwitchCaseBegin()
			for _, s := range cs.Stmts {
				w.stmt(s)
			}
		}
		w.eng.SwitchEnd(n.Exhaustive)
	case tree.KindBreak:
		w.eng.HandleBreak()
	case tree.KindContinue:
		w.eng.HandleContinue()
	case tree.KindReturn, tree.KindThrow:
		w.eng.HandleExit()
	case tree.KindClosure:
		w.eng.FunctionBegin(n)
		w.stmt(n.Body)
		w.eng.FunctionEnd()
	default:
		if !n.IsStatement() {
			w.expr(n)
			return
		}
		panic(fmt.Sprintf("flow: unhandled statement kind %s", n.Kind))
	}
}

// try composes the engine's try/catch and try/finally operations: a statement
// with both catches and a finally nests the catch handling inside the finally
// handling, the way the states actually flow.
func (w *walker) try(n *tree.Node) {
	hasFinally := n.Finally != nil
	hasCatches := len(n.Catches) > 0

	if hasFinally {
		w.eng.TryFinallyBegin(n)
	}
	if hasCatches {
		w.eng.TryCatchBegin(n.Body)
		w.stmt(n.Body)
		w.eng.TryBodyEnd()
		for _, cl := range n.Catches {
			w.eng.CatchBegin()
			w.stmt(cl.Body)
			w.eng.CatchEnd()
		}
		w.eng.TryCatchEnd()
	} else {
		w.stmt(n.Body)
	}
	if hasFinally {
		w.eng.FinallyBegin(n.Finally)
		w.stmt(n.Finally)
		w.eng.TryFinallyEnd()
	}
}

func (w *walker) expr(n *tree.Node) types.Type {
	switch n.Kind {
	case tree.KindLiteral, tree.KindNullLiteral:
		return n.Type
	case tree.KindBoolLiteral:
		w.eng.BooleanLiteral(n, n.Value == "true")
		return n.Type
	case tree.KindVariableGet:
		if t, ok := w.eng.VariableRead(n, n.Variable); ok {
			return t
		}
		return n.Variable.Type
	case tree.KindAssign:
		t := w.expr(n.RHS)
		w.eng.Write(n, n.Variable, t, n.RHS)
		return t
	case tree.KindPropertyGet:
		w.expr(n.Receiver)
		w.eng.PropertyRead(n, n.Receiver, n.Member)
		return n.Type
	case tree.KindNullAwareAccess:
		w.expr(n.Receiver)
		w.eng.NullAwareBegin(n.Receiver)
		w.eng.PropertyRead(n, n.Receiver, n.Member)
		return w.eng.NullAwareEnd(n, n.Type, false)
	case tree.KindNullCoalesce:
		lt := w.expr(n.Left)
		w.eng.IfNullRightBegin(n.Left)
		rt := w.expr(n.Right)
		return w.eng.IfNullEnd(n, lt, rt)
	case tree.KindLogicalAnd:
		w.expr(n.Left)
		w.eng.LogicalRightBegin(n.Left, true)
		w.expr(n.Right)
		w.eng.LogicalEnd(n, n.Right, true)
		return types.BoolType
	case tree.KindLogicalOr:
		w.expr(n.Left)
		w.eng.LogicalRightBegin(n.Left, false)
		w.expr(n.Right)
		w.eng.LogicalEnd(n, n.Right, false)
		return types.BoolType
	case tree.KindNot:
		w.expr(n.RHS)
		w.eng.NotExpression(n, n.RHS)
		return types.BoolType
	case tree.KindIsTest:
		w.eng.IsExpression(n, n.Variable, n.Type, n.Negated)
		return types.BoolType
	case tree.KindAsCast:
		w.eng.AsExpression(n.Variable, n.Type)
		return n.Type
	case tree.KindEqualsNull:
		if n.Variable != nil {
			w.eng.EqualsNull(n, n.Variable, n.Negated)
		} else {
			w.expr(n.Receiver)
			if n.Receiver.Kind == tree.KindPropertyGet {
				w.eng.PropertyEqualsNull(n, n.Receiver.Receiver, n.Receiver.Member, n.Receiver.Type, n.Negated)
			}
		}
		return types.BoolType
	default:
		panic(fmt.Sprintf("flow: unhandled expression kind %s", n.Kind))
	}
}
