// Package status computes which terminal outcomes (success, failure,
// running) are statically reachable at each node of a behavior tree.
//
// A node's own bits come from the plain entries of its type's status list.
// The remaining entries are combination rules applied against the aggregate
// of its children:
//
//	!success, !failure            negation (inverting decorators)
//	|success, |failure, |running  any child reaches the outcome
//	&success, &failure            every child reaches the outcome
//
// A type without rules simply takes the union of its own bits and the child
// aggregate.
package status

import "strings"

// Flags is a small bitset of reachable outcomes plus the two bookkeeping
// bits used while aggregating children.
type Flags uint8

const (
	Running Flags = 1 << iota
	Failure
	Success
	_
	failureNeverSeen
	successNeverSeen

	outcomeMask = Success | Failure | Running
)

func (f Flags) HasSuccess() bool { return f&Success != 0 }
func (f Flags) HasFailure() bool { return f&Failure != 0 }
func (f Flags) HasRunning() bool { return f&Running != 0 }

// SuccessNeverSeen reports whether some aggregated child could not succeed.
func (f Flags) SuccessNeverSeen() bool { return f&successNeverSeen != 0 }

// FailureNeverSeen reports whether some aggregated child could not fail.
func (f Flags) FailureNeverSeen() bool { return f&failureNeverSeen != 0 }

func (f *Flags) MarkSuccessNeverSeen() { *f |= successNeverSeen }
func (f *Flags) MarkFailureNeverSeen() { *f |= failureNeverSeen }

// Outcomes drops the bookkeeping bits.
func (f Flags) Outcomes() Flags { return f & outcomeMask }

func (f Flags) set(bit Flags, on bool) Flags {
	if on {
		return f | bit
	}
	return f
}

func (f Flags) String() string {
	var parts []string
	if f.HasSuccess() {
		parts = append(parts, "success")
	}
	if f.HasFailure() {
		parts = append(parts, "failure")
	}
	if f.HasRunning() {
		parts = append(parts, "running")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Declared returns the bits named by the plain entries of a status list.
// Rule entries are ignored.
func Declared(rules []string) Flags {
	var f Flags
	for _, r := range rules {
		switch r {
		case "success":
			f |= Success
		case "failure":
			f |= Failure
		case "running":
			f |= Running
		}
	}
	return f
}

// HasRules reports whether the status list contains any combination rule.
func HasRules(rules []string) bool {
	for _, r := range rules {
		if strings.HasPrefix(r, "!") || strings.HasPrefix(r, "|") || strings.HasPrefix(r, "&") {
			return true
		}
	}
	return false
}

// Aggregate folds children's flags. The zero value is the aggregate of no
// children.
type Aggregate struct {
	flags Flags
}

// Add folds one child's flags in.
func (a *Aggregate) Add(child Flags) {
	if !child.HasSuccess() {
		a.flags.MarkSuccessNeverSeen()
	}
	if !child.HasFailure() {
		a.flags.MarkFailureNeverSeen()
	}
	a.flags |= child.Outcomes()
}

// Flags returns the aggregate including bookkeeping bits.
func (a Aggregate) Flags() Flags { return a.flags }

// Combine computes a node's reachable outcomes from its type's status list
// and its children's aggregate. Rules are applied in declaration order on
// top of the declared bits.
func Combine(rules []string, children Aggregate) Flags {
	own := Declared(rules)
	agg := children.flags
	if !HasRules(rules) {
		return (own | agg).Outcomes()
	}
	f := own
	for _, r := range rules {
		switch r {
		case "!success":
			f = f.set(Success, agg.HasFailure())
		case "!failure":
			f = f.set(Failure, agg.HasSuccess())
		case "|success":
			f = f.set(Success, agg.HasSuccess())
		case "|failure":
			f = f.set(Failure, agg.HasFailure())
		case "|running":
			f = f.set(Running, agg.HasRunning())
		case "&success":
			if agg.SuccessNeverSeen() {
				f &^= Success
			} else {
				f = f.set(Success, agg.HasSuccess())
			}
		case "&failure":
			if agg.FailureNeverSeen() {
				f &^= Failure
			} else {
				f = f.set(Failure, agg.HasFailure())
			}
		}
	}
	return f.Outcomes()
}
