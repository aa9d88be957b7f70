package gantt

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Expr is a node of the expression tree used for constraints, indicators and
// objectives. The set of node types is closed.
type Expr interface {
	String() string
	isExpr()
}

var (
	_ Expr = Var{}
	_ Expr = Const{}
	_ Expr = Sum{}
	_ Expr = Scale{}
	_ Expr = Compare{}
	_ Expr = And{}
	_ Expr = Or{}
)

type EntityKind string

const (
	EntityTask      EntityKind = "task"
	EntityResource  EntityKind = "resource"
	EntityIndicator EntityKind = "indicator"
	EntityProblem   EntityKind = "problem"
)

type Attribute string

const (
	AttrStart     Attribute = "start"
	AttrEnd       Attribute = "end"
	AttrDuration  Attribute = "duration"
	AttrScheduled Attribute = "scheduled"
	AttrBusy      Attribute = "busy"
	AttrValue     Attribute = "value"
	AttrMakespan  Attribute = "makespan"
)

var attributeEntities = map[Attribute]EntityKind{
	AttrStart:     EntityTask,
	AttrEnd:       EntityTask,
	AttrDuration:  EntityTask,
	AttrScheduled: EntityTask,
	AttrBusy:      EntityResource,
	AttrValue:     EntityIndicator,
	AttrMakespan:  EntityProblem,
}

// Var references one attribute of a registered entity.
type Var struct {
	Entity EntityKind
	Name   string
	Attr   Attribute
}

func (Var) isExpr() {}

func (v Var) String() string {
	if v.Entity == EntityProblem {
		return string(v.Attr)
	}
	return v.Name + "." + string(v.Attr)
}

type Const struct {
	Value int64
}

func (Const) isExpr() {}

func (v Const) String() string {
	return strconv.FormatInt(v.Value, 10)
}

type Sum struct {
	Terms []Expr
}

func (Sum) isExpr() {}

func (v Sum) String() string {
	return "(" + joinExprs(v.Terms, " + ") + ")"
}

type Scale struct {
	Factor int64
	X      Expr
}

func (Scale) isExpr() {}

func (v Scale) String() string {
	return strconv.FormatInt(v.Factor, 10) + "*" + exprString(v.X)
}

type Compare struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (Compare) isExpr() {}

func (v Compare) String() string {
	return exprString(v.Left) + " " + string(v.Op) + " " + exprString(v.Right)
}

type And struct {
	Terms []Expr
}

func (And) isExpr() {}

func (v And) String() string {
	return "(" + joinExprs(v.Terms, " and ") + ")"
}

type Or struct {
	Terms []Expr
}

func (Or) isExpr() {}

func (v Or) String() string {
	return "(" + joinExprs(v.Terms, " or ") + ")"
}

func exprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func joinExprs(l []Expr, sep string) string {
	ss := make([]string, 0, len(l))
	for _, e := range l {
		ss = append(ss, exprString(e))
	}
	return strings.Join(ss, sep)
}

func NewConst(v int64) Const {
	return Const{Value: v}
}

func NewSum(terms ...Expr) Sum {
	return Sum{Terms: terms}
}

func NewScale(factor int64, x Expr) Scale {
	return Scale{Factor: factor, X: x}
}

func NewAnd(terms ...Expr) And {
	return And{Terms: terms}
}

func NewOr(terms ...Expr) Or {
	return Or{Terms: terms}
}

func Eq(l, r Expr) Compare { return Compare{Op: OpEq, Left: l, Right: r} }
func Ne(l, r Expr) Compare { return Compare{Op: OpNe, Left: l, Right: r} }
func Lt(l, r Expr) Compare { return Compare{Op: OpLt, Left: l, Right: r} }
func Le(l, r Expr) Compare { return Compare{Op: OpLe, Left: l, Right: r} }
func Gt(l, r Expr) Compare { return Compare{Op: OpGt, Left: l, Right: r} }
func Ge(l, r Expr) Compare { return Compare{Op: OpGe, Left: l, Right: r} }

func TaskStart(t Task) Var {
	return Var{Entity: EntityTask, Name: t.Name(), Attr: AttrStart}
}

func TaskEnd(t Task) Var {
	return Var{Entity: EntityTask, Name: t.Name(), Attr: AttrEnd}
}

func TaskDuration(t Task) Var {
	return Var{Entity: EntityTask, Name: t.Name(), Attr: AttrDuration}
}

func TaskScheduled(t Task) Var {
	return Var{Entity: EntityTask, Name: t.Name(), Attr: AttrScheduled}
}

func ResourceBusy(r *Resource) Var {
	return Var{Entity: EntityResource, Name: r.Name(), Attr: AttrBusy}
}

func IndicatorValue(i *Indicator) Var {
	return Var{Entity: EntityIndicator, Name: i.Name(), Attr: AttrValue}
}

func Makespan() Var {
	return Var{Entity: EntityProblem, Attr: AttrMakespan}
}

// ParseRef parses "name.attr" (or "makespan") into a Var.
func ParseRef(s string) (Var, error) {
	s = strings.TrimSpace(s)
	if s == string(AttrMakespan) {
		return Makespan(), nil
	}
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Var{}, errors.Wrapf(ErrMalformedExpression, "Reference %q", s)
	}
	attr := Attribute(s[i+1:])
	entity, ok := attributeEntities[attr]
	if !ok || entity == EntityProblem {
		return Var{}, errors.Wrapf(ErrMalformedExpression, "Reference %q has unknown attribute", s)
	}
	return Var{Entity: entity, Name: s[:i], Attr: attr}, nil
}

func isConditionExpr(e Expr) bool {
	switch v := e.(type) {
	case Compare, And, Or:
		return true
	case Var:
		return v.Attr == AttrScheduled
	}
	return false
}

// checkExpr verifies the tree shape. condition reports whether e is used
// in a boolean position.
func checkExpr(e Expr, condition bool) error {
	if e == nil {
		return errors.Wrap(ErrMalformedExpression, "Nil node")
	}
	switch v := e.(type) {
	case Var:
		if entity, ok := attributeEntities[v.Attr]; !ok || entity != v.Entity {
			return errors.Wrapf(ErrMalformedExpression, "Attribute %s on %s", v.Attr, v.Entity)
		}
		if condition && v.Attr != AttrScheduled {
			return errors.Wrapf(ErrMalformedExpression, "%s is not a condition", v)
		}
		return nil
	case Const:
		if condition {
			return errors.Wrapf(ErrMalformedExpression, "Constant %s is not a condition", v)
		}
		return nil
	case Sum:
		if condition {
			return errors.Wrapf(ErrMalformedExpression, "Sum %s is not a condition", v)
		}
		if len(v.Terms) == 0 {
			return errors.Wrap(ErrMalformedExpression, "Empty sum")
		}
		for _, t := range v.Terms {
			if err := checkExpr(t, false); err != nil {
				return err
			}
		}
		return nil
	case Scale:
		if condition {
			return errors.Wrapf(ErrMalformedExpression, "Scale %s is not a condition", v)
		}
		return checkExpr(v.X, false)
	case Compare:
		if !condition {
			return errors.Wrapf(ErrMalformedExpression, "Comparison %s used as a number", v)
		}
		if _, err := getOperator(v.Op); err != nil {
			return err
		}
		if err := checkExpr(v.Left, false); err != nil {
			return err
		}
		return checkExpr(v.Right, false)
	case And:
		return checkConditions("and", v.Terms, condition)
	case Or:
		return checkConditions("or", v.Terms, condition)
	}
	return errors.Wrapf(ErrMalformedExpression, "Unknown node %T", e)
}

func checkConditions(name string, terms []Expr, condition bool) error {
	if !condition {
		return errors.Wrapf(ErrMalformedExpression, "%s used as a number", name)
	}
	if len(terms) == 0 {
		return errors.Wrapf(ErrMalformedExpression, "Empty %s", name)
	}
	for _, t := range terms {
		if err := checkExpr(t, true); err != nil {
			return err
		}
	}
	return nil
}

func walkVars(e Expr, fn func(Var) error) error {
	switch v := e.(type) {
	case Var:
		return fn(v)
	case Sum:
		return walkVarList(v.Terms, fn)
	case And:
		return walkVarList(v.Terms, fn)
	case Or:
		return walkVarList(v.Terms, fn)
	case Scale:
		return walkVars(v.X, fn)
	case Compare:
		if err := walkVars(v.Left, fn); err != nil {
			return err
		}
		return walkVars(v.Right, fn)
	}
	return nil
}

func walkVarList(l []Expr, fn func(Var) error) error {
	for _, e := range l {
		if err := walkVars(e, fn); err != nil {
			return err
		}
	}
	return nil
}
