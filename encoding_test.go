package edgejs

import (
	"strings"
	"testing"
)

// Seed scenario 4: btoa/atob canonical round trip, plus the Latin1-range
// rejection for codepoints outside the range btoa can represent.
func TestBtoaAtobCanonical(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `atob(btoa("hello world"))`)
	if v.String() != "hello world" {
		t.Fatalf("got %q", v.String())
	}
}

func TestBtoaRejectsOutsideLatin1(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`btoa("\u{1F680}")`)
	if err == nil {
		t.Fatal("expected btoa to reject a non-Latin1 string")
	}
	if !strings.Contains(err.Error(), "Latin1") {
		t.Fatalf("error %v does not mention Latin1", err)
	}
}

func TestAtobRejectsMalformedInput(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`atob("not valid base64!!")`)
	if err == nil {
		t.Fatal("expected atob to reject malformed base64")
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const bytes = new TextEncoder().encode("héllo");
		return new TextDecoder().decode(bytes);
	})()`)
	if v.String() != "héllo" {
		t.Fatalf("got %q", v.String())
	}
}

func TestTextEncoderStream(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const source = new ReadableStream({
			start(c) { c.enqueue("ab"); c.enqueue("cd"); c.close(); }
		});
		const reader = source.pipeThrough(new TextEncoderStream()).getReader();
		let total = 0;
		while (true) {
			const { value, done } = await reader.read();
			if (done) break;
			total += value.length;
		}
		return total;
	})()`)
	if v.Raw() != float64(4) {
		t.Fatalf("got %v encoded bytes, want 4", v.Raw())
	}
}
