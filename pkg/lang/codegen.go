package lang

import (
	"fmt"
	"strings"

	"wordcpu/pkg/diag"
)

// generator walks the AST and appends textual assembly lines. It keeps
// a variable/temp slot namespace shared by name and a label counter;
// each sub-expression's operand text is returned up the call stack and
// appended to lines in source order as it's produced.
type generator struct {
	vars      map[string]int
	varCount  int
	tempCount int
	labelNum  int
	lines     []string
}

func newGenerator() *generator {
	return &generator{vars: map[string]int{}}
}

func (g *generator) emit(format string, args ...any) {
	g.lines = append(g.lines, fmt.Sprintf(format, args...))
}

func (g *generator) emitLabel(name string) {
	g.lines = append(g.lines, name+":")
}

func (g *generator) newLabel(prefix string) string {
	g.labelNum++
	return fmt.Sprintf("%s%d", prefix, g.labelNum)
}

// nextTemp allocates and returns the next transient slot.
func (g *generator) nextTemp() int {
	slot := g.tempCount
	g.tempCount++
	return slot
}

// Generate lowers a parsed program to a newline-separated assembly
// listing.
func Generate(stmts []Stmt) (string, error) {
	g := newGenerator()
	for _, s := range stmts {
		if err := g.lowerStmt(s); err != nil {
			return "", err
		}
	}
	return strings.Join(g.lines, "\n") + "\n", nil
}

func (g *generator) lowerStmt(s Stmt) error {
	switch st := s.(type) {
	case *AssignStmt:
		if err := g.lowerAssign(st); err != nil {
			return err
		}
	case *IfStmt:
		if err := g.lowerIf(st); err != nil {
			return err
		}
	case *WhileStmt:
		if err := g.lowerWhile(st); err != nil {
			return err
		}
	default:
		return fmt.Errorf("lang: unhandled statement %T", st)
	}
	// temp_count resets to var_count after every statement, at every
	// nesting depth, so transient slots are reused.
	g.tempCount = g.varCount
	return nil
}

func (g *generator) lowerAssign(st *AssignStmt) error {
	src, err := g.evalExpr(st.Value)
	if err != nil {
		return err
	}
	slot, ok := g.vars[st.Name]
	if !ok {
		slot = g.varCount
		g.vars[st.Name] = slot
		g.varCount++
	}
	g.emit("mv [%d] %s", slot, src)
	return nil
}

func (g *generator) lowerIf(st *IfStmt) error {
	cond, err := g.evalExpr(st.Cond)
	if err != nil {
		return err
	}
	end := g.newLabel("Lk_ifend")
	g.emit("b== %s 0 %s", cond, end)
	for _, inner := range st.Body {
		if err := g.lowerStmt(inner); err != nil {
			return err
		}
	}
	g.emitLabel(end)
	return nil
}

// lowerWhile emits the condition check exactly once, at the bottom of
// the loop body, and jumps there before the first iteration so the
// initial test and every subsequent re-test run the same code.
func (g *generator) lowerWhile(st *WhileStmt) error {
	loop := g.newLabel("Lloop")
	condi := g.newLabel("Lcondi")
	g.emit("j %s", condi)
	g.emitLabel(loop)
	for _, inner := range st.Body {
		if err := g.lowerStmt(inner); err != nil {
			return err
		}
	}
	g.emitLabel(condi)
	cond, err := g.evalExpr(st.Cond)
	if err != nil {
		return err
	}
	g.emit("b!= %s 0 %s", cond, loop)
	return nil
}

// evalExpr lowers an expression and returns the assembly operand text
// (an immediate literal or a "[slot]" memory reference) that holds its
// result.
func (g *generator) evalExpr(e Expr) (string, error) {
	switch ex := e.(type) {
	case *NumberExpr:
		return fmt.Sprintf("%d", ex.Value), nil

	case *FieldExpr:
		slot, ok := g.vars[ex.Name]
		if !ok {
			return "", diag.NewLexError(ex.Row, ex.Col, "undefined variable %q", ex.Name)
		}
		return fmt.Sprintf("[%d]", slot), nil

	case *BinaryExpr:
		left, err := g.evalExpr(ex.Left)
		if err != nil {
			return "", err
		}
		right, err := g.evalExpr(ex.Right)
		if err != nil {
			return "", err
		}
		mnem, err := aluMnemonic(ex.Op)
		if err != nil {
			return "", err
		}
		slot := g.nextTemp()
		g.emit("%s [%d] %s %s", mnem, slot, left, right)
		return fmt.Sprintf("[%d]", slot), nil

	case *CallExpr:
		// The parser has already checked this is read(literal). "in"
		// ORs into its destination (so multiple ports can accumulate
		// into one word), which means a plain single-port read must
		// zero the slot first or it picks up whatever temp value was
		// last left there.
		port := ex.Args[0].(*NumberExpr).Value
		slot := g.nextTemp()
		g.emit("mv [%d] 0", slot)
		g.emit("in [%d] %d", slot, port)
		return fmt.Sprintf("[%d]", slot), nil

	default:
		return "", fmt.Errorf("lang: unhandled expression %T", ex)
	}
}

func aluMnemonic(op TokenType) (string, error) {
	switch op {
	case PLUS:
		return "c+", nil
	case MINUS:
		return "c-", nil
	case SHL:
		return "c<<", nil
	case SHR:
		return "c>>", nil
	case USHR:
		return "c>>>", nil
	case LT:
		return "c<", nil
	case GT:
		return "c>", nil
	case LE:
		return "c<=", nil
	case GE:
		return "c>=", nil
	case EQ:
		return "c==", nil
	case NE:
		return "c!=", nil
	case AND:
		return "c&", nil
	case XOR:
		return "c^", nil
	case OR:
		return "c|", nil
	default:
		return "", fmt.Errorf("lang: unhandled binary operator %s", op)
	}
}
