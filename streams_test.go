package edgejs

import "testing"

// Seed scenario 1: enqueue three chunks, read them back through the
// default reader, and concatenate.
func TestStreamEcho(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const stream = new ReadableStream({
			start(controller) {
				controller.enqueue("Hello");
				controller.enqueue(" ");
				controller.enqueue("World");
				controller.close();
			}
		});
		const reader = stream.getReader();
		let out = "";
		while (true) {
			const { value, done } = await reader.read();
			if (done) break;
			out += value;
		}
		return out;
	})()`)
	if v.String() != "Hello World" {
		t.Fatalf("got %q, want %q", v.String(), "Hello World")
	}
}

// Seed scenario 2: pipeThrough with an uppercasing TransformStream.
func TestUppercasePipeThrough(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const source = new ReadableStream({
			start(controller) {
				controller.enqueue("abc");
				controller.enqueue("def");
				controller.close();
			}
		});
		const upper = new TransformStream({
			transform(chunk, controller) {
				controller.enqueue(chunk.toUpperCase());
			}
		});
		const reader = source.pipeThrough(upper).getReader();
		let out = "";
		while (true) {
			const { value, done } = await reader.read();
			if (done) break;
			out += value;
		}
		return out;
	})()`)
	if v.String() != "ABCDEF" {
		t.Fatalf("got %q, want %q", v.String(), "ABCDEF")
	}
}

// Seed scenario 3: aborting a pipeTo mid-stream rejects with AbortError
// and stops delivering further chunks to the sink.
func TestAbortDuringPipeTo(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const controller = new AbortController();
		const chunks = [];
		const source = new ReadableStream({
			start(c) {
				let i = 0;
				const push = () => {
					if (i >= 10) { c.close(); return; }
					c.enqueue(i++);
					setTimeout(push, 5);
				};
				push();
			}
		});
		const sink = new WritableStream({
			write(chunk) { chunks.push(chunk); }
		});
		setTimeout(() => controller.abort(), 22);
		try {
			await source.pipeTo(sink, { signal: controller.signal });
			return { aborted: false, count: chunks.length };
		} catch (e) {
			return { aborted: true, name: e.name, count: chunks.length };
		}
	})()`)
	m, ok := v.Raw().(map[string]any)
	if !ok {
		t.Fatalf("expected object result, got %#v", v.Raw())
	}
	if aborted, _ := m["aborted"].(bool); !aborted {
		t.Fatalf("expected pipeTo to be aborted, got %#v", m)
	}
	if name, _ := m["name"].(string); name != "AbortError" {
		t.Fatalf("expected AbortError, got %#v", m["name"])
	}
	if count, _ := m["count"].(float64); count >= 10 {
		t.Fatalf("expected pipeTo to stop early, got %v chunks delivered", count)
	}
}

func TestReadableStream_Tee(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const source = new ReadableStream({
			start(c) { c.enqueue("x"); c.close(); }
		});
		const [a, b] = source.tee();
		const ra = await a.getReader().read();
		const rb = await b.getReader().read();
		return { a: ra.value, b: rb.value };
	})()`)
	m := v.Raw().(map[string]any)
	if m["a"] != "x" || m["b"] != "x" {
		t.Fatalf("tee branches diverged: %#v", m)
	}
}

func TestWritableStream_ReadyReflectsBackpressure(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const writer = new WritableStream({
			write(chunk) {
				return new Promise((resolve) => setTimeout(resolve, 10));
			}
		}).getWriter();
		const firstReady = writer.ready;
		writer.write("a");
		const settledEarly = await Promise.race([
			writer.ready.then(() => "settled"),
			new Promise((r) => setTimeout(() => r("pending"), 1)),
		]);
		await writer.ready;
		return settledEarly;
	})()`)
	if v.String() != "pending" {
		t.Fatalf("writer.ready resolved before the in-flight write settled: %q", v.String())
	}
}
