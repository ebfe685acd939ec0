package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func agg(children ...Flags) Aggregate {
	var a Aggregate
	for _, c := range children {
		a.Add(c)
	}
	return a
}

var sequenceRules = []string{"&success", "|failure", "|running"}

func TestDeclared(t *testing.T) {
	assert.Equal(t, Success|Running, Declared([]string{"success", "running", "|failure"}))
	assert.Equal(t, Flags(0), Declared(nil))
}

func TestAggregate_NeverSeenBits(t *testing.T) {
	a := agg(Success, Success|Failure)
	f := a.Flags()
	assert.True(t, f.HasSuccess())
	assert.True(t, f.HasFailure())
	assert.False(t, f.SuccessNeverSeen())
	assert.True(t, f.FailureNeverSeen())

	empty := agg().Flags()
	assert.False(t, empty.SuccessNeverSeen())
	assert.False(t, empty.FailureNeverSeen())
}

func TestAggregate_OrderIndependent(t *testing.T) {
	a := agg(Success, Failure|Running, Success|Failure)
	b := agg(Success|Failure, Success, Failure|Running)
	assert.Equal(t, a.Flags(), b.Flags())
}

func TestCombine_NoRulesIsUnion(t *testing.T) {
	rules := []string{"success"}
	got := Combine(rules, agg(Failure, Running))
	assert.Equal(t, Success|Failure|Running, got)
	// Bookkeeping bits never leak into the result.
	assert.Equal(t, got, got.Outcomes())
}

func TestCombine_SequenceScenario(t *testing.T) {
	log := Combine([]string{"success"}, Aggregate{})
	wait := Combine([]string{"success", "running"}, Aggregate{})

	root := Combine(sequenceRules, agg(log, wait))
	assert.True(t, root.HasSuccess())
	assert.True(t, root.HasRunning())
	assert.False(t, root.HasFailure())
	assert.Equal(t, "success|running", root.String())
}

func TestCombine_AndSuccessClearedByOneChild(t *testing.T) {
	all := Combine(sequenceRules, agg(Success, Success|Running))
	assert.True(t, all.HasSuccess())

	mixed := Combine(sequenceRules, agg(Success, Failure))
	assert.False(t, mixed.HasSuccess())
	assert.True(t, mixed.HasFailure())
}

func TestCombine_AndSuccessClearsDeclaredBit(t *testing.T) {
	got := Combine([]string{"success", "&success"}, agg(Success, Failure))
	assert.False(t, got.HasSuccess())
}

func TestCombine_AndFailure(t *testing.T) {
	rules := []string{"&failure", "|success"}
	assert.True(t, Combine(rules, agg(Failure, Failure|Success)).HasFailure())
	assert.False(t, Combine(rules, agg(Failure, Success)).HasFailure())
}

func TestCombine_OrFailure(t *testing.T) {
	rules := []string{"|success", "|failure"}
	assert.False(t, Combine(rules, agg(Success, Success)).HasFailure())
	assert.True(t, Combine(rules, agg(Success, Failure)).HasFailure())
}

func TestCombine_Negation(t *testing.T) {
	inverter := []string{"!success", "!failure", "|running"}

	got := Combine(inverter, agg(Success))
	assert.Equal(t, Failure, got)

	got = Combine(inverter, agg(Failure|Running))
	assert.Equal(t, Success|Running, got)
}

func TestCombine_NoChildrenWithRules(t *testing.T) {
	got := Combine(sequenceRules, Aggregate{})
	assert.Equal(t, Flags(0), got)
}

func TestFlags_Mark(t *testing.T) {
	var f Flags
	f.MarkSuccessNeverSeen()
	f.MarkFailureNeverSeen()
	assert.True(t, f.SuccessNeverSeen())
	assert.True(t, f.FailureNeverSeen())
	assert.Equal(t, Flags(0), f.Outcomes())
	assert.Equal(t, "none", f.String())
}
