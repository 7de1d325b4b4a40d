package edgejs

import "testing"

// Seed scenario 5: 100 calls to crypto.randomUUID produce 100 distinct,
// well-formed v4 UUIDs.
func TestRandomUUIDUniqueness(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const seen = new Set();
		const pattern = /^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$/;
		for (let i = 0; i < 100; i++) {
			const id = crypto.randomUUID();
			if (!pattern.test(id)) throw new Error("malformed uuid: " + id);
			seen.add(id);
		}
		return seen.size;
	})()`)
	if v.Raw() != float64(100) {
		t.Fatalf("got %v unique UUIDs, want 100 (duplicates generated)", v.Raw())
	}
}

func TestGetRandomValues_FillsAndReturnsArray(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const arr = new Uint8Array(16);
		const ret = crypto.getRandomValues(arr);
		const allZero = arr.every((b) => b === 0);
		return { sameArray: ret === arr, allZero: allZero };
	})()`)
	m := v.Raw().(map[string]any)
	if m["sameArray"] != true {
		t.Fatalf("getRandomValues should return the same typed array: %#v", m)
	}
	if m["allZero"] == true {
		t.Fatalf("getRandomValues left the buffer all zero (16 random bytes landing on zero is astronomically unlikely)")
	}
}

func TestGetRandomValues_RejectsOversizedBuffer(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`crypto.getRandomValues(new Uint8Array(65537))`)
	if err == nil {
		t.Fatal("expected QuotaExceededError for an oversized buffer")
	}
}

func TestGetRandomValues_RejectsNonIntegerView(t *testing.T) {
	ctx := newTestContext(t)
	for _, expr := range []string{
		`crypto.getRandomValues(new Float32Array(4))`,
		`crypto.getRandomValues(new Float64Array(4))`,
		`crypto.getRandomValues([1, 2, 3])`,
		`crypto.getRandomValues("not a view")`,
	} {
		_, err := ctx.Evaluate(expr)
		if err == nil {
			t.Fatalf("%s: expected rejection of a non-integer-view argument", expr)
		}
	}
}

func TestGetRandomValues_FillsByByteLength(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const arr = new Uint32Array(4);
		crypto.getRandomValues(arr);
		const distinctWords = new Set(arr).size;
		const tooSmall = arr.every((w) => w <= 255);
		return { distinctWords: distinctWords, tooSmall: tooSmall };
	})()`)
	m := v.Raw().(map[string]any)
	if m["tooSmall"] == true {
		t.Fatalf("Uint32Array elements all fit in a byte — getRandomValues filled by element, not by byteLength: %#v", m)
	}
	if m["distinctWords"] == float64(0) {
		t.Fatalf("expected non-zero random words: %#v", m)
	}
}
