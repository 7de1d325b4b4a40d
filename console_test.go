package edgejs

import "testing"

func TestLogs_ConsoleCapture(t *testing.T) {
	ctx := newTestContext(t)
	evalOK(t, ctx, `console.log("one"); console.warn("two");`)
	logs := ctx.Logs()
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2: %#v", len(logs), logs)
	}
	if logs[0].Level != "log" || logs[0].Message != "one" {
		t.Fatalf("unexpected first log entry: %#v", logs[0])
	}
	if logs[1].Level != "warn" || logs[1].Message != "two" {
		t.Fatalf("unexpected second log entry: %#v", logs[1])
	}

	// Logs drain: a second call returns nothing new.
	if rest := ctx.Logs(); len(rest) != 0 {
		t.Fatalf("expected logs drained, got %#v", rest)
	}
}

func TestConsole_CountAndAssert(t *testing.T) {
	ctx := newTestContext(t)
	evalOK(t, ctx, `
		console.count("hits");
		console.count("hits");
		console.assert(false, "boom");
	`)
	logs := ctx.Logs()
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3: %#v", len(logs), logs)
	}
	if logs[0].Message != "hits: 1" || logs[1].Message != "hits: 2" {
		t.Fatalf("console.count did not increment per label: %#v", logs[:2])
	}
	if logs[2].Level != "error" {
		t.Fatalf("console.assert(false, ...) should log at error level: %#v", logs[2])
	}
}
