package edgejs

import "testing"

func TestFileReader_StateMachine(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(function() {
		return new Promise(function(resolve, reject) {
			const blob = new Blob(["payload"]);
			const fr = new FileReader();
			const states = [fr.readyState];
			fr.onloadstart = function() { states.push(fr.readyState); };
			fr.onload = function() {
				states.push(fr.readyState);
				resolve({ states: states, result: fr.result });
			};
			fr.onerror = function() { reject(fr.error); };
			fr.readAsText(blob);
		});
	})()`)
	m := v.Raw().(map[string]any)
	if m["result"] != "payload" {
		t.Fatalf("unexpected FileReader result: %#v", m["result"])
	}
	states, _ := m["states"].([]any)
	if len(states) != 3 || states[0] != float64(0) || states[1] != float64(1) || states[2] != float64(2) {
		t.Fatalf("unexpected readyState sequence: %#v", states)
	}
}

func TestFileReader_RejectsReentrantRead(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Evaluate(`(function() {
		const blob = new Blob(["x"]);
		const fr = new FileReader();
		fr.readAsText(blob);
		fr.readAsText(blob);
	})()`)
	if err == nil {
		t.Fatal("expected InvalidStateError when reading while already LOADING")
	}
}

func TestFileReader_Abort(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(function() {
		return new Promise(function(resolve) {
			const blob = new Blob(["x".repeat(1000)]);
			const fr = new FileReader();
			fr.onabort = function() { resolve({ aborted: true, state: fr.readyState }); };
			fr.onload = function() { resolve({ aborted: false, state: fr.readyState }); };
			fr.readAsText(blob);
			fr.abort();
		});
	})()`)
	m := v.Raw().(map[string]any)
	if m["aborted"] != true {
		t.Fatalf("expected FileReader.abort() to fire onabort: %#v", m)
	}
}
