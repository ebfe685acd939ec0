package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDialect(t *testing.T) {
	c, err := ForDialect("")
	require.NoError(t, err)
	assert.IsType(t, &JS{}, c)

	c, err = ForDialect("EXPR")
	require.NoError(t, err)
	assert.IsType(t, &ExprLang{}, c)

	_, err = ForDialect("lua")
	require.Error(t, err)
}

func TestJS_Identifiers(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"hp > 0", []string{"hp"}},
		{"target.hp - damage * 2", []string{"damage", "target"}},
		{"Math.max(a, b)", []string{"a", "b"}},
		{"clamp(x, 0, 1)", []string{"x"}},
		{"list.filter(e => e.alive).length > count", []string{"count", "list"}},
		{"hp = hp - 1", []string{"hp"}},
		{"true && !dead", []string{"dead"}},
		{"list.some(e => e.ok) && e > 0", []string{"e", "list"}},
		{"items.map((a, b) => a + b + bonus)", []string{"bonus", "items"}},
		{"f(x) + f", []string{"f", "x"}},
		{"", nil},
	}
	js := NewJS()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := js.Check(tt.src)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJS_SyntaxErrors(t *testing.T) {
	js := NewJS()
	for _, src := range []string{"hp >", "a + (b", "if (x) { y }", "1 +* 2"} {
		t.Run(src, func(t *testing.T) {
			_, err := js.Check(src)
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, src, se.Source)
		})
	}
}

func TestExprLang_Identifiers(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"hp > 0", []string{"hp"}},
		{"target.hp - damage * 2", []string{"damage", "target"}},
		{"len(items) > limit", []string{"items", "limit"}},
		{"heal(amount)", []string{"amount"}},
		{"let x = base + 1; x * 2", []string{"base"}},
		{"heal(amount) + heal", []string{"amount", "heal"}},
	}
	e := NewExprLang()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := e.Check(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprLang_SyntaxError(t *testing.T) {
	_, err := NewExprLang().Check("a + (b")
	require.Error(t, err)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Error(), "invalid expression: a + (b")
}
