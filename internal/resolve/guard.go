package resolve

// Guard is the stack of files currently being resolved. Both subtree
// inlining and variable collection consult it so that reference cycles end
// instead of recursing forever.
type Guard struct {
	stack  []string
	active map[string]int
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[string]int)}
}

// Enter pushes path. It returns false, without pushing, if path is already
// on the stack.
func (g *Guard) Enter(path string) bool {
	if g.active[path] > 0 {
		return false
	}
	g.active[path]++
	g.stack = append(g.stack, path)
	return true
}

// Leave pops path. Leaving a path that is not on top is a programming error
// and panics.
func (g *Guard) Leave(path string) {
	n := len(g.stack)
	if n == 0 || g.stack[n-1] != path {
		panic("resolve: unbalanced guard leave for " + path)
	}
	g.stack = g.stack[:n-1]
	if g.active[path]--; g.active[path] <= 0 {
		delete(g.active, path)
	}
}

// Active reports whether path is on the stack.
func (g *Guard) Active(path string) bool { return g.active[path] > 0 }

// Depth returns the stack size.
func (g *Guard) Depth() int { return len(g.stack) }

// Stack returns a copy of the stack, outermost first.
func (g *Guard) Stack() []string {
	out := make([]string, len(g.stack))
	copy(out, g.stack)
	return out
}

// Reset empties the stack.
func (g *Guard) Reset() {
	g.stack = g.stack[:0]
	clear(g.active)
}
