package edgejs

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ionlattice/edgejs/internal/webapi"
)

// disableFetchSSRF temporarily disables SSRF protection so tests can
// connect to httptest servers on 127.0.0.1. Restored via t.Cleanup.
func disableFetchSSRF(t *testing.T) {
	t.Helper()
	origSSRF := webapi.FetchSSRFEnabled
	origTransport := webapi.FetchTransport
	webapi.FetchSSRFEnabled = false
	webapi.FetchTransport = http.DefaultTransport
	t.Cleanup(func() {
		webapi.FetchSSRFEnabled = origSSRF
		webapi.FetchTransport = origTransport
	})
}

// Seed scenario 6 (partial): fetch against a malformed URL rejects with a
// TypeError before any network attempt is made.
func TestFetchInvalidURL(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Await(`fetch("not a url")`)
	if err == nil {
		t.Fatal("expected fetch to reject on an invalid URL")
	}
	if !IsTypeError(err) {
		t.Fatalf("expected TypeError, got %v", err)
	}
}

// Seed scenario 6: a GET against a local httptest server returns its fixed
// JSON body with the correct status and content.
func TestFetch_EchoEndpoint(t *testing.T) {
	disableFetchSSRF(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	ctx := newTestContext(t)
	v := awaitOK(t, ctx, fmt.Sprintf(`(async function() {
		const resp = await fetch(%q);
		const body = await resp.text();
		return { status: resp.status, ok: resp.ok, body: body };
	})()`, srv.URL))

	m := v.Raw().(map[string]any)
	if m["status"] != float64(200) || m["ok"] != true {
		t.Fatalf("unexpected response metadata: %#v", m)
	}
	if m["body"] != `{"ok":true}` {
		t.Fatalf("unexpected response body: %#v", m["body"])
	}
}

func TestFetch_RejectsForbiddenMethod(t *testing.T) {
	disableFetchSSRF(t)
	ctx := newTestContext(t)
	_, err := ctx.Await(`fetch("http://example.invalid/", { method: "TRACE" })`)
	if err == nil {
		t.Fatal("expected TRACE to be rejected as a forbidden method")
	}
	if !IsTypeError(err) {
		t.Fatalf("expected TypeError, got %v", err)
	}
}

func TestFetch_GetWithBodyRejected(t *testing.T) {
	disableFetchSSRF(t)
	ctx := newTestContext(t)
	_, err := ctx.Await(`fetch("http://example.invalid/", { method: "GET", body: "x" })`)
	if err == nil {
		t.Fatal("expected GET with a body to be rejected")
	}
	if !IsTypeError(err) {
		t.Fatalf("expected TypeError, got %v", err)
	}
}

func TestFetch_PreAbortedSignalRejectsWithAbortError(t *testing.T) {
	ctx := newTestContext(t)
	v := awaitOK(t, ctx, `(async function() {
		const controller = new AbortController();
		controller.abort();
		try {
			await fetch("http://example.com", { signal: controller.signal });
			return "not aborted";
		} catch (e) {
			return e.name;
		}
	})()`)
	if v.String() != "AbortError" {
		t.Fatalf("got %q, want AbortError", v.String())
	}
}
