package edgejs

import "testing"

func TestTimers_SetTimeoutClear(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `new Promise(function(resolve) {
		const id = setTimeout(function() { resolve("fired"); }, 1000);
		clearTimeout(id);
		setTimeout(function() { resolve("safety"); }, 20);
	})`)
	if v.String() != "safety" {
		t.Fatalf("got %q, want %q (cleared timer should not fire)", v.String(), "safety")
	}
}

func TestTimers_OrderedByDelay(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `new Promise(function(resolve) {
		const order = [];
		setTimeout(function() { order.push("c"); }, 30);
		setTimeout(function() { order.push("a"); }, 5);
		setTimeout(function() { order.push("b"); }, 15);
		setTimeout(function() { resolve(order); }, 45);
	})`)
	arr := v.Raw().([]any)
	if len(arr) != 3 || arr[0] != "a" || arr[1] != "b" || arr[2] != "c" {
		t.Fatalf("timers fired out of delay order: %#v", arr)
	}
}

func TestTimers_SetIntervalFiresRepeatedly(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `new Promise(function(resolve) {
		let count = 0;
		const id = setInterval(function() {
			count++;
			if (count >= 3) {
				clearInterval(id);
				resolve(count);
			}
		}, 5);
	})`)
	if v.Raw() != float64(3) {
		t.Fatalf("got %v interval firings, want 3", v.Raw())
	}
}
