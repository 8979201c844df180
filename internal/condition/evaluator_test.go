package condition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateSyntax(t *testing.T) {
	e := New(0)

	assert.NoError(t, e.ValidateSyntax(`return true`))
	assert.NoError(t, e.ValidateSyntax(`if context.region == "eu" then allow = true end`))

	assert.Error(t, e.ValidateSyntax(""))
	assert.Error(t, e.ValidateSyntax("   \n\t"))
	assert.Error(t, e.ValidateSyntax(`if context.region == "eu" then`))
	assert.Error(t, e.ValidateSyntax(`retrun true`))
}

func TestValidateStructuredResult(t *testing.T) {
	e := New(0)

	result := e.Validate(`return true`)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)

	result = e.Validate(`1 +`)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "syntax error")
}

func TestEvaluateReturnValue(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	assert.True(t, e.Evaluate(ctx, `return true`, nil))
	assert.False(t, e.Evaluate(ctx, `return false`, nil))
	assert.False(t, e.Evaluate(ctx, `return nil`, nil))

	// Any non-false, non-nil value is truthy in Lua
	assert.True(t, e.Evaluate(ctx, `return 0`, nil))
	assert.True(t, e.Evaluate(ctx, `return "no"`, nil))
}

func TestEvaluateAllowGlobal(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	assert.True(t, e.Evaluate(ctx, `allow = true`, nil))
	assert.False(t, e.Evaluate(ctx, `allow = false`, nil))
	assert.False(t, e.Evaluate(ctx, `local x = 1`, nil), "neither return nor allow means false")

	// An explicit return beats the allow global
	assert.False(t, e.Evaluate(ctx, `allow = true return false`, nil))
}

func TestEvaluateContextTable(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	runtime := map[string]interface{}{
		"region":     "eu",
		"department": "sales",
		"age":        42,
		"active":     true,
		"tags":       []interface{}{"a", "b"},
		"nested":     map[string]interface{}{"level": 2},
	}

	assert.True(t, e.Evaluate(ctx, `return context.region == "eu"`, runtime))
	assert.False(t, e.Evaluate(ctx, `return context.region == "us"`, runtime))
	assert.True(t, e.Evaluate(ctx, `return context.age > 40 and context.active`, runtime))
	assert.True(t, e.Evaluate(ctx, `return context.tags[1] == "a"`, runtime))
	assert.True(t, e.Evaluate(ctx, `return context.nested.level == 2`, runtime))
	assert.True(t, e.Evaluate(ctx, `return context.missing == nil`, runtime))
}

func TestEvaluateFailsClosed(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	// Syntax error
	assert.False(t, e.Evaluate(ctx, `retrun true`, nil))
	// Runtime error
	assert.False(t, e.Evaluate(ctx, `error("boom")`, nil))
	// Calling a nil value
	assert.False(t, e.Evaluate(ctx, `return undefined_function()`, nil))
}

func TestEvaluateTimeout(t *testing.T) {
	e := New(50 * time.Millisecond)

	start := time.Now()
	result := e.Evaluate(context.Background(), `while true do end`, nil)
	elapsed := time.Since(start)

	assert.False(t, result, "an endless loop must fail closed")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestEvaluateSandbox(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	// os and io are never opened; touching them errors and fails closed
	assert.False(t, e.Evaluate(ctx, `return os.time() > 0`, nil))
	assert.False(t, e.Evaluate(ctx, `io.write("x") return true`, nil))
	assert.False(t, e.Evaluate(ctx, `return load("return true")()`, nil))
	assert.False(t, e.Evaluate(ctx, `return dofile("/etc/passwd")`, nil))

	// The safe libraries stay available
	assert.True(t, e.Evaluate(ctx, `return string.upper("eu") == "EU"`, nil))
	assert.True(t, e.Evaluate(ctx, `return math.max(1, 2) == 2`, nil))
	assert.True(t, e.Evaluate(ctx, `local t = {3, 1, 2} table.sort(t) return t[1] == 1`, nil))
}

func TestTestReportsTiming(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	result := e.Test(ctx, `return context.x == 1`, map[string]interface{}{"x": 1})
	assert.True(t, result.Result)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))

	result = e.Test(ctx, `error("boom")`, nil)
	assert.False(t, result.Result)
	assert.Contains(t, result.Error, "boom")
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
}

func TestNewDefaultsTimeout(t *testing.T) {
	e := New(0)
	assert.Equal(t, DefaultTimeout, e.timeout)

	e = New(-time.Second)
	assert.Equal(t, DefaultTimeout, e.timeout)

	e = New(time.Second)
	assert.Equal(t, time.Second, e.timeout)
}
