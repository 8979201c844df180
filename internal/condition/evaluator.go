package condition

import (
	"context"
	"fmt"
	"strings"
	"time"

	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	lua "github.com/yuin/gopher-lua"
	luaparse "github.com/yuin/gopher-lua/parse"
)

// DefaultTimeout bounds a single script execution
const DefaultTimeout = 200 * time.Millisecond

// MaxScriptBytes is the size above which Analyze warns
const MaxScriptBytes = 8 * 1024

// Evaluator validates and executes Lua policy scripts. A script sees a
// read-only `context` table built from the runtime context and signals its
// decision by returning a value or setting the `allow` global.
type Evaluator struct {
	timeout time.Duration
	log     *console.Logger
}

func New(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{
		timeout: timeout,
		log:     console.New("CONDITION"),
	}
}

// ValidationResult is the outcome of a parse-only syntax check
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// TestResult is the outcome of a sandboxed test run. ExecutionTimeMs is
// populated even when the run fails.
type TestResult struct {
	Result          bool   `json:"result"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Error           string `json:"error,omitempty"`
}

// ValidateSyntax parses the script without executing it
func (e *Evaluator) ValidateSyntax(script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("script is empty")
	}
	if _, err := luaparse.Parse(strings.NewReader(script), "policy"); err != nil {
		return fmt.Errorf("syntax error: %v", err)
	}
	return nil
}

// Validate wraps ValidateSyntax into a structured result for API callers
func (e *Evaluator) Validate(script string) ValidationResult {
	if err := e.ValidateSyntax(script); err != nil {
		return ValidationResult{Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}

// Test executes the script against a caller-supplied sample context.
// Non-destructive; used for interactive policy authoring.
func (e *Evaluator) Test(ctx context.Context, script string, sample map[string]interface{}) TestResult {
	start := time.Now()
	result, err := e.run(ctx, script, sample)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return TestResult{ExecutionTimeMs: elapsed, Error: err.Error()}
	}
	return TestResult{Result: result, ExecutionTimeMs: elapsed}
}

// Evaluate runs the script at authorization-check time. Fail closed: any
// execution error, timeout or panic means the condition is not satisfied.
func (e *Evaluator) Evaluate(ctx context.Context, script string, runtime map[string]interface{}) bool {
	result, err := e.run(ctx, script, runtime)
	if err != nil {
		e.log.Warn("condition evaluation failed closed: %v", err)
		return false
	}
	return result
}

func (e *Evaluator) run(ctx context.Context, script string, contextData map[string]interface{}) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("script panicked: %v", r)
		}
	}()

	if err := e.ValidateSyntax(script); err != nil {
		return false, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSandboxLibs(L)
	L.SetGlobal("context", toLValue(L, contextData))

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	L.SetContext(runCtx)

	fn, err := L.LoadString(script)
	if err != nil {
		return false, fmt.Errorf("failed to load script: %v", err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return false, fmt.Errorf("execution error: %v", err)
	}

	// A returned value wins; otherwise the script may set the allow global
	if L.GetTop() > 0 {
		return lua.LVAsBool(L.Get(-1)), nil
	}
	return lua.LVAsBool(L.GetGlobal("allow")), nil
}

// openSandboxLibs opens only the side-effect-free parts of the stdlib. No io,
// no os, no package loading.
func openSandboxLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// Base opens a few escape hatches; shut them
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "print"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// toLValue converts a Go value into its Lua representation
func toLValue(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case time.Time:
		return lua.LNumber(v.Unix())
	case []interface{}:
		table := L.NewTable()
		for _, item := range v {
			table.Append(toLValue(L, item))
		}
		return table
	case map[string]interface{}:
		table := L.NewTable()
		for key, item := range v {
			table.RawSetString(key, toLValue(L, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}
