package expr_test

import (
	"testing"

	"github.com/duragraph/duragraph/internal/domain/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ExactPath(t *testing.T) {
	ctx := map[string]interface{}{
		"x": float64(1),
		"user": map[string]interface{}{
			"name": "Q",
		},
	}

	t.Run("resolves a top-level path", func(t *testing.T) {
		v := expr.Evaluate("${x}", ctx)
		assert.Equal(t, float64(1), v)
	})

	t.Run("resolves a nested path", func(t *testing.T) {
		v := expr.Evaluate("${user.name}", ctx)
		assert.Equal(t, "Q", v)
	})

	t.Run("returns the original string when the path is absent", func(t *testing.T) {
		v := expr.Evaluate("${missing}", ctx)
		assert.Equal(t, "${missing}", v)
	})
}

func TestEvaluate_Template(t *testing.T) {
	ctx := map[string]interface{}{"x": float64(1), "name": "Q"}

	t.Run("substitutes interleaved literal text", func(t *testing.T) {
		v := expr.Evaluate("hello ${name}, x=${x}", ctx)
		assert.Equal(t, "hello Q, x=1", v)
	})

	t.Run("substitutes an absent path as empty", func(t *testing.T) {
		v := expr.Evaluate("value: ${missing}!", ctx)
		assert.Equal(t, "value: !", v)
	})
}

func TestEvaluate_PassThrough(t *testing.T) {
	ctx := map[string]interface{}{}

	t.Run("non-string values pass through unchanged", func(t *testing.T) {
		assert.Equal(t, 42, expr.Evaluate(42, ctx))
		assert.Equal(t, true, expr.Evaluate(true, ctx))
		assert.Nil(t, expr.Evaluate(nil, ctx))
	})

	t.Run("plain strings with no references pass through", func(t *testing.T) {
		assert.Equal(t, "plain text", expr.Evaluate("plain text", ctx))
	})
}

func TestNestedSetAndGet(t *testing.T) {
	m := map[string]interface{}{}
	expr.NestedSet(m, "a.b.c", "v")

	v, ok := expr.NestedGet(m, "a.b.c")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = expr.NestedGet(m, "a.b.missing")
	assert.False(t, ok)
}
