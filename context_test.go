package edgejs

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testCfg() Config {
	return Config{
		MemoryLimitMB:    128,
		ExecutionTimeout: 5000,
		MaxFetchRequests: 50,
		FetchTimeoutSec:  5,
		MaxResponseBytes: 10 * 1024 * 1024,
		MaxScriptSizeKB:  1024,
	}
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := CreateContext(testCfg())
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	t.Cleanup(ctx.Shutdown)
	return ctx
}

// evalOK evaluates source and fails the test on error.
func evalOK(t *testing.T, ctx *Context, source string) Value {
	t.Helper()
	v, err := ctx.Evaluate(source)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", source, err)
	}
	return v
}

// awaitOK awaits expr and fails the test on error.
func awaitOK(t *testing.T, ctx *Context, expr string) Value {
	t.Helper()
	v, err := ctx.Await(expr)
	if err != nil {
		t.Fatalf("Await(%q): %v", expr, err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Evaluate / Await / Value basics
// ---------------------------------------------------------------------------

func TestEvaluate_BasicArithmetic(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, "1 + 2 * 3")
	if v.Raw() != float64(7) {
		t.Fatalf("got %#v, want 7", v.Raw())
	}
}

func TestEvaluate_Undefined(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, "var a = 1;")
	if !v.IsUndefined() {
		t.Fatalf("expected undefined, got %#v", v.Raw())
	}
	if v.String() != "undefined" {
		t.Fatalf("String() = %q, want %q", v.String(), "undefined")
	}
}

func TestEvaluate_StringAndObject(t *testing.T) {
	ctx := newTestContext(t)

	v := evalOK(t, ctx, `"hello"`)
	if v.String() != "hello" {
		t.Fatalf("got %q, want %q", v.String(), "hello")
	}

	v = evalOK(t, ctx, `({a: 1, b: "two"})`)
	m, ok := v.Raw().(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", v.Raw())
	}
	if m["a"] != float64(1) || m["b"] != "two" {
		t.Fatalf("unexpected object %#v", m)
	}
}

func TestEvaluate_ThrowReturnsError(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`throw new TypeError("bad input");`)
	if err == nil {
		t.Fatal("expected error from thrown exception")
	}
	if !IsTypeError(err) {
		t.Fatalf("expected TypeError, got %v", err)
	}
}

func TestAwait_ResolvedPromise(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `Promise.resolve(42)`)
	if v.Raw() != float64(42) {
		t.Fatalf("got %#v, want 42", v.Raw())
	}
}

func TestAwait_RejectedPromise(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Await(`Promise.reject(new Error("nope"))`)
	if err == nil {
		t.Fatal("expected error from rejected promise")
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error %v does not mention rejection reason", err)
	}
}

// ---------------------------------------------------------------------------
// SetGlobal / RegisterNativeFunction
// ---------------------------------------------------------------------------

func TestSetGlobal_VisibleToScript(t *testing.T) {
	ctx := newTestContext(t)
	if err := ctx.SetGlobal("greeting", "hi there"); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	v := evalOK(t, ctx, "greeting.toUpperCase()")
	if v.String() != "HI THERE" {
		t.Fatalf("got %q", v.String())
	}
}

func TestRegisterNativeFunction(t *testing.T) {
	ctx := newTestContext(t)
	called := false
	err := ctx.RegisterNativeFunction("hostAdd", func(a, b int) int {
		called = true
		return a + b
	})
	if err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}
	v := evalOK(t, ctx, "hostAdd(19, 23)")
	if v.Raw() != float64(42) {
		t.Fatalf("got %#v, want 42", v.Raw())
	}
	if !called {
		t.Fatal("native function was not invoked")
	}
}

type errCustom string

func (e errCustom) Error() string { return string(e) }

func TestRegisterNativeFunction_ErrorBecomesThrow(t *testing.T) {
	ctx := newTestContext(t)
	err := ctx.RegisterNativeFunction("alwaysFails", func() (string, error) {
		return "", errCustom("boom")
	})
	if err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}
	_, evalErr := ctx.Evaluate(`alwaysFails()`)
	if evalErr == nil {
		t.Fatal("expected error propagated from native function")
	}
	if !strings.Contains(evalErr.Error(), "boom") {
		t.Fatalf("error %v does not mention underlying cause", evalErr)
	}
}

// ---------------------------------------------------------------------------
// Value.JSON and Context isolation
// ---------------------------------------------------------------------------

func TestValue_JSON(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `({x: 1, y: [2, 3]})`)
	b, err := v.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("round-tripping JSON: %v", err)
	}
	if decoded["x"] != float64(1) {
		t.Fatalf("unexpected decoded value: %#v", decoded)
	}
}

func TestContext_IsolatedFromEachOther(t *testing.T) {
	a := newTestContext(t)
	b := newTestContext(t)

	if err := a.SetGlobal("onlyOnA", "yes"); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	v := evalOK(t, b, `typeof onlyOnA`)
	if v.String() != "undefined" {
		t.Fatalf("globals leaked across contexts: %q", v.String())
	}
}
