package edgejs

import (
	"os"
	"testing"
)

func TestProcess_EnvArgvPidCwd(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		return {
			hasEnv: typeof process.env === "object",
			hasArgv: Array.isArray(process.argv),
			pid: typeof process.pid,
			cwd: typeof process.cwd(),
			platform: typeof process.platform,
		};
	})()`)
	m := v.Raw().(map[string]any)
	if m["hasEnv"] != true || m["hasArgv"] != true {
		t.Fatalf("process.env/argv missing: %#v", m)
	}
	if m["pid"] != "number" || m["cwd"] != "string" || m["platform"] != "string" {
		t.Fatalf("unexpected process field types: %#v", m)
	}
}

func TestProcess_EnvWritesPropagateToHost(t *testing.T) {
	t.Setenv("EDGEJS_TEST_VAR", "")

	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		process.env.EDGEJS_TEST_VAR = "from-script";
		return process.env.EDGEJS_TEST_VAR;
	})()`)
	if v.String() != "from-script" {
		t.Fatalf("got %q, want %q", v.String(), "from-script")
	}
	if got := os.Getenv("EDGEJS_TEST_VAR"); got != "from-script" {
		t.Fatalf("host os.Getenv did not observe the script's write, got %q", got)
	}

	v2 := evalOK(t, ctx, `delete process.env.EDGEJS_TEST_VAR; typeof process.env.EDGEJS_TEST_VAR`)
	if v2.String() != "undefined" {
		t.Fatalf("expected deleted env var to read back undefined, got %q", v2.String())
	}
}

func TestProcess_ExitClampsCode(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		try {
			process.exit(9001);
		} catch (e) {
			return e.code;
		}
	})()`)
	if v.Raw() != float64(255) {
		t.Fatalf("got exit code %v, want 255 (clamped)", v.Raw())
	}

	v2 := evalOK(t, ctx, `(function() {
		try {
			process.exit(-5);
		} catch (e) {
			return e.code;
		}
	})()`)
	if v2.Raw() != float64(0) {
		t.Fatalf("got exit code %v, want 0 (clamped)", v2.Raw())
	}
}

func TestProcess_ExitThrowsInsteadOfTerminating(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`process.exit(1); console.log("unreachable");`)
	if err == nil {
		t.Fatal("expected process.exit to throw")
	}

	// The context itself must still be usable afterward — process.exit
	// unwinds the script, it does not terminate the host VM.
	v := evalOK(t, ctx, `1 + 1`)
	if v.Raw() != float64(2) {
		t.Fatalf("context unusable after process.exit throw: %#v", v.Raw())
	}
}
