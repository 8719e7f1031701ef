package event

import (
	"path"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
)

// Kind distinguishes the three EventOperator node variants.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindMatch
)

func (k Kind) String() string {
	switch k {
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	default:
		return "match"
	}
}

// Operator is a node in a boolean expression tree over event matchers.
// AND/OR nodes always have exactly two children and no intrinsic value
// besides the reduction of their children; MATCH nodes are leaves that
// carry an event name, a pattern array, a current boolean Value, and —
// once matched — a strong reference to the matched Event.
type Operator struct {
	Kind  Kind
	Left  *Operator
	Right *Operator

	// MATCH-only fields.
	EventName string
	Args      []string
	Value     bool
	Matched   *Event
}

// NewMatch builds a MATCH leaf for the given event name and pattern array.
func NewMatch(name string, args []string) *Operator {
	return &Operator{Kind: KindMatch, EventName: name, Args: append([]string(nil), args...)}
}

// NewAnd builds an AND node joining two children.
func NewAnd(l, r *Operator) *Operator { return &Operator{Kind: KindAnd, Left: l, Right: r} }

// NewOr builds an OR node joining two children.
func NewOr(l, r *Operator) *Operator { return &Operator{Kind: KindOr, Left: l, Right: r} }

// IsLeaf reports whether n is a MATCH leaf (no children).
func (n *Operator) IsLeaf() bool { return n.Kind == KindMatch }

// stackFrame is used by the explicit (non-recursive) post-order walker:
// trees are built from untrusted, parsed text, so traversal must not rely
// on the language call stack.
type stackFrame struct {
	node    *Operator
	visited bool
}

// postOrder visits every node of the tree rooted at root exactly once, in
// post-order (children before parent), using an explicit stack.
func postOrder(root *Operator, visit func(*Operator)) {
	if root == nil {
		return
	}
	stack := []stackFrame{{node: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.node.IsLeaf() || top.visited {
			visit(top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		top.visited = true
		stack = append(stack, stackFrame{node: top.node.Right}, stackFrame{node: top.node.Left})
	}
}

// preOrderFiltered visits nodes in pre-order, but never descends into a
// subtree whose root currently has Value == false (used by Environment).
func preOrderFiltered(root *Operator, visit func(*Operator)) {
	if root == nil {
		return
	}
	stack := []*Operator{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !n.Value {
			continue
		}
		visit(n)
		if !n.IsLeaf() {
			// Push right first so left is visited first (pre-order).
			stack = append(stack, n.Right, n.Left)
		}
	}
}

// Update recomputes an AND/OR node's Value from its children. It is a
// no-op on MATCH leaves.
func Update(n *Operator) {
	if n == nil || n.IsLeaf() {
		return
	}
	switch n.Kind {
	case KindAnd:
		n.Value = n.Left.Value && n.Right.Value
	case KindOr:
		n.Value = n.Left.Value || n.Right.Value
	}
}

// expandVar expands "$NAME" references in pattern against env. Expanding a
// reference to a variable that is not bound in env fails the whole
// expansion (per the "$UNSET against any value: fails" boundary).
func expandVar(pattern string, env Env) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(pattern) && (isVarByte(pattern[j])) {
			j++
		}
		if j == i+1 {
			// Lone '$' with no identifier following: literal.
			b.WriteByte(c)
			continue
		}
		name := pattern[i+1 : j]
		val, ok := env.Get(name)
		if !ok {
			return "", false
		}
		b.WriteString(val)
		i = j - 1
	}
	return b.String(), true
}

func isVarByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Match evaluates a MATCH leaf against ev using expansionEnv to expand any
// $NAME references in its patterns before globbing. It is a pure predicate
// and does not mutate n.
func Match(n *Operator, ev *Event, expansionEnv Env) bool {
	if n.EventName != ev.Name {
		return false
	}

	values := make([]string, len(ev.Env))
	for i, kv := range ev.Env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			values[i] = kv[idx+1:]
		} else {
			values[i] = kv
		}
	}

	namedMode := false
	positional := 0
	for _, arg := range n.Args {
		key, pattern, negate, isNamed := splitArg(arg)
		if isNamed {
			namedMode = true
		}
		if !namedMode {
			if positional >= len(values) {
				// Positional overflow (more positional patterns than event values).
				return false
			}
			expanded, ok := expandVar(pattern, expansionEnv)
			if !ok {
				return false
			}
			ok2, _ := path.Match(expanded, values[positional])
			if !ok2 {
				return false
			}
			positional++
			continue
		}

		val, present := ev.Env.Get(key)
		if !present {
			// Negative lookups succeed against absent variables; positive
			// lookups against an absent variable fail.
			if negate {
				continue
			}
			return false
		}
		expanded, ok := expandVar(pattern, expansionEnv)
		if !ok {
			return false
		}
		matched, _ := path.Match(expanded, val)
		if negate {
			matched = !matched
		}
		if !matched {
			return false
		}
	}
	return true
}

// splitArg parses one pattern entry: a bare POSITIONAL value, or a
// KEY=VALUE / KEY!=VALUE named pattern.
func splitArg(arg string) (key, pattern string, negate, named bool) {
	if idx := strings.Index(arg, "!="); idx >= 0 {
		return arg[:idx], arg[idx+2:], true, true
	}
	if idx := strings.IndexByte(arg, '='); idx >= 0 {
		return arg[:idx], arg[idx+1:], false, true
	}
	return "", arg, false, false
}

// Handle performs the post-order walk described in §4.1: it updates every
// AND/OR node and, for each unmatched MATCH leaf, attempts Match; on
// success it latches the event reference and blocks it. It returns whether
// any leaf latched onto ev during this call; the caller must still inspect
// root.Value to decide whether the whole expression is now satisfied.
func Handle(root *Operator, ev *Event, expansionEnv Env) bool {
	latched := false
	postOrder(root, func(n *Operator) {
		if n.IsLeaf() {
			if n.Value {
				return
			}
			if Match(n, ev, expansionEnv) {
				n.Value = true
				n.Matched = ev
				ev.Block()
				latched = true
			}
			return
		}
		Update(n)
	})
	return latched
}

// Reset clears every MATCH value, releasing its blocked event, then
// rebuilds every AND/OR node so the whole tree reports false.
func Reset(root *Operator) {
	postOrder(root, func(n *Operator) {
		if n.IsLeaf() {
			if n.Value {
				n.Value = false
				if n.Matched != nil {
					n.Matched.Unblock()
					n.Matched = nil
				}
			}
			return
		}
		Update(n)
	})
}

// Environment appends every blocked event's environment into env (Set
// semantics: later writes overwrite same-named earlier ones). If
// eventsKey is non-empty, it additionally appends
// "eventsKey=space-separated-event-names" gathered along the way.
func Environment(root *Operator, env *Env, eventsKey string) {
	var names []string
	preOrderFiltered(root, func(n *Operator) {
		if n.IsLeaf() && n.Matched != nil {
			env.Append(n.Matched.Env)
			names = append(names, n.Matched.Name)
		}
	})
	if eventsKey != "" {
		env.Set(eventsKey, strings.Join(names, " "))
	}
}

// Collapse reconstructs a fully-parenthesised textual form of the tree via
// an explicit post-order stack traversal.
func Collapse(root *Operator) string {
	type frame struct {
		text string
	}
	var output []frame
	postOrder(root, func(n *Operator) {
		if n.IsLeaf() {
			parts := append([]string{n.EventName}, n.Args...)
			output = append(output, frame{text: strings.Join(parts, " ")})
			return
		}
		// Two children were pushed in post-order before n, so the last two
		// entries in output are (left, right).
		right := output[len(output)-1].text
		left := output[len(output)-2].text
		output = output[:len(output)-2]
		op := "and"
		if n.Kind == KindOr {
			op = "or"
		}
		output = append(output, frame{text: "(" + left + " " + op + " " + right + ")"})
	})
	if len(output) == 0 {
		return ""
	}
	return output[0].text
}

// Copy performs a deep copy of op that preserves matched state: where the
// source held a latched event reference, the copy blocks that same event
// again (duplicating the blocker count), per §4.1.
func Copy(op *Operator) *Operator {
	if op == nil {
		return nil
	}
	clone := deepcopy.Copy(op).(*Operator)
	// deepcopy.Copy duplicates the Event by value via reflection, which would
	// desynchronize the blocker count from the real, shared Event. Re-point
	// every cloned leaf back at the original Event object instead, blocking
	// it again to account for the new reference.
	var origs []*Event
	postOrder(op, func(n *Operator) {
		if n.IsLeaf() {
			origs = append(origs, n.Matched)
		}
	})
	i := 0
	postOrder(clone, func(n *Operator) {
		if n.IsLeaf() {
			orig := origs[i]
			i++
			n.Matched = orig
			if orig != nil {
				orig.Block()
			}
		}
	})
	return clone
}

// String renders a human-readable form, used for logging and debugging.
func (n *Operator) String() string {
	if n == nil {
		return "<nil>"
	}
	return Collapse(n) + " = " + strconv.FormatBool(n.Value)
}
