package edgejs

import "testing"

func TestAbortController_Invariants(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const c = new AbortController();
		const before = c.signal.aborted;
		let firedReason;
		c.signal.addEventListener("abort", function() {
			firedReason = c.signal.reason;
		});
		c.abort("because");
		return { before: before, after: c.signal.aborted, reason: firedReason };
	})()`)
	m := v.Raw().(map[string]any)
	if m["before"] != false {
		t.Fatalf("signal should start unaborted: %#v", m)
	}
	if m["after"] != true {
		t.Fatalf("signal should be aborted after abort(): %#v", m)
	}
	if m["reason"] != "because" {
		t.Fatalf("abort event listener should observe the reason: %#v", m)
	}
}

func TestAbortController_DefaultReasonIsAbortError(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const c = new AbortController();
		c.abort();
		return { name: c.signal.reason.name, isDOMException: c.signal.reason instanceof DOMException };
	})()`)
	m := v.Raw().(map[string]any)
	if m["name"] != "AbortError" {
		t.Fatalf("default abort reason should be an AbortError, got %#v", m)
	}
	if m["isDOMException"] != true {
		t.Fatalf("default abort reason should be a DOMException, got %#v", m)
	}
}

func TestEvent_StopImmediatePropagation(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOK(t, ctx, `(function() {
		const target = new EventTarget();
		const order = [];
		target.addEventListener("ping", (e) => {
			order.push("first");
			e.stopImmediatePropagation();
		});
		target.addEventListener("ping", () => {
			order.push("second");
		});
		target.dispatchEvent(new CustomEvent("ping"));
		return order;
	})()`)
	arr := v.Raw().([]any)
	if len(arr) != 1 || arr[0] != "first" {
		t.Fatalf("stopImmediatePropagation did not stop remaining listeners: %#v", arr)
	}
}
