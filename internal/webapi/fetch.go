package webapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
)

// FetchSSRFEnabled controls whether the SSRF-safe dialer is used for fetch.
// Tests set this to false so httptest servers on 127.0.0.1 are reachable.
var FetchSSRFEnabled = true

// ForbiddenFetchHeaders is the blocklist of headers script cannot set.
var ForbiddenFetchHeaders = map[string]bool{
	"host":                true,
	"transfer-encoding":   true,
	"connection":          true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
	"x-forwarded-for":     true,
	"x-forwarded-host":    true,
	"x-forwarded-proto":   true,
	"x-real-ip":           true,
}

func newFetchTransport() *http.Transport {
	t := &http.Transport{DialContext: ssrfSafeDialContext}
	_ = http2.ConfigureTransport(t)
	return t
}

// FetchTransport is the http.RoundTripper used by fetch. Tests can override it.
var FetchTransport http.RoundTripper = newFetchTransport()

// bodyPipes tracks the write side of an in-flight streaming request body,
// keyed by fetchID. A fetchID is unique process-wide (it embeds the
// context ID), so a single map suffices across all contexts.
var (
	bodyPipesMu sync.Mutex
	bodyPipes   = map[string]*io.PipeWriter{}
)

// fetchJS defines the global fetch() function plus the event handlers the
// Go-side fetch goroutine drives as the exchange progresses. Response
// bodies stream: the Promise fetch() returns settles as soon as the status
// line and headers arrive, with a ReadableStream body that fills as chunks
// arrive from the network.
const fetchJS = `
(function() {
globalThis.__fetchPromises = {};
globalThis.__fetchStreams = {};

globalThis.fetch = function(input, init) {
	var ctxID = String(globalThis.__contextID || '');
	var url = '', method = 'GET', headers = {}, body = '', bodyIsBase64 = false;
	var bodyStream = null, redirect = 'follow', signalAborted = false, signal = null;

	function extractBody(b) {
		if (b == null) return;
		if (b instanceof ReadableStream) {
			bodyStream = b;
			return;
		}
		if (b instanceof ArrayBuffer || ArrayBuffer.isView(b)) {
			body = __bufferSourceToB64(b);
			bodyIsBase64 = true;
		} else {
			body = String(b);
		}
	}

	if (typeof input === 'string') {
		url = input;
	} else if (input instanceof URL) {
		url = input.toString();
	} else if (input && typeof input === 'object') {
		url = input.url || '';
		method = input.method || 'GET';
		if (input.headers) {
			if (input.headers._map) {
				var m = input.headers._map;
				for (var k in m) { if (m.hasOwnProperty(k)) headers[k] = String(m[k]); }
			} else if (typeof input.headers.forEach === 'function') {
				input.headers.forEach(function(v, k) { headers[k] = v; });
			}
		}
		if (input._body != null) extractBody(input._body);
		if (input.redirect !== undefined) redirect = String(input.redirect);
		if (input.signal) { signal = input.signal; if (input.signal.aborted) signalAborted = true; }
	}

	if (init && typeof init === 'object') {
		if (init.method !== undefined) method = String(init.method).toUpperCase();
		if (init.headers) {
			var src;
			if (init.headers instanceof Headers) {
				src = {};
				init.headers.forEach(function(v, k) { src[k] = v; });
			} else if (init.headers._map) {
				src = init.headers._map;
			} else {
				src = init.headers;
			}
			if (typeof src === 'object') {
				for (var k2 in src) { if (src.hasOwnProperty(k2)) headers[k2.toLowerCase()] = String(src[k2]); }
			}
		}
		if (init.body != null) extractBody(init.body);
		if (init.redirect !== undefined) redirect = String(init.redirect);
		if (init.signal) { signal = init.signal; if (init.signal.aborted) signalAborted = true; }
	}

	if (!method) method = 'GET';
	if ((method === 'GET' || method === 'HEAD') && (body || bodyStream)) {
		return Promise.reject(new TypeError('Request with GET/HEAD method cannot have body'));
	}
	if (method === 'CONNECT' || method === 'TRACE' || method === 'TRACK') {
		return Promise.reject(new TypeError("'" + method + "' HTTP method is not allowed"));
	}

	if (signalAborted) {
		return Promise.reject(new DOMException('The operation was aborted.', 'AbortError'));
	}

	var headersJSON = JSON.stringify(headers);
	var argsJSON = JSON.stringify({
		url: url, method: method, headersJSON: headersJSON,
		body: body || '', bodyIsBase64: bodyIsBase64, bodyIsStream: bodyStream !== null,
		redirect: redirect
	});

	return new Promise(function(resolve, reject) {
		var fetchID;
		try {
			fetchID = __fetchStart(ctxID, argsJSON);
		} catch (e) { reject(e); return; }

		globalThis.__fetchPromises[fetchID] = { resolve: resolve, reject: reject, settled: false };

		if (signal && !signal.aborted) {
			signal.addEventListener('abort', function onAbort() {
				signal.removeEventListener('abort', onAbort);
				__fetchAbort(ctxID, fetchID);
				var entry = globalThis.__fetchPromises[fetchID];
				var stream = globalThis.__fetchStreams[fetchID];
				if (entry && !entry.settled) {
					delete globalThis.__fetchPromises[fetchID];
					entry.settled = true;
					entry.reject(new DOMException('The operation was aborted.', 'AbortError'));
				} else if (stream && stream.controller) {
					stream.controller.error(new DOMException('The operation was aborted.', 'AbortError'));
				}
			});
		}

		if (bodyStream) {
			(async function pump() {
				var reader = bodyStream.getReader();
				try {
					for (;;) {
						var r = await reader.read();
						if (r.done) break;
						var chunk = r.value;
						var bytes = chunk instanceof Uint8Array ? chunk : new Uint8Array(
							typeof chunk === 'string' ? new TextEncoder().encode(chunk) : chunk);
						__fetchPushChunk(fetchID, __bufferSourceToB64(bytes));
					}
					__fetchEndBody(fetchID);
				} catch (e) {
					__fetchAbort(ctxID, fetchID);
				}
			})();
		}
	});
};

globalThis.__fetchHeaders = function(fetchID, status, statusText, headersJSON, redirected, finalURL) {
	var entry = globalThis.__fetchPromises[fetchID];
	delete globalThis.__fetchPromises[fetchID];
	if (!entry || entry.settled) return;
	entry.settled = true;
	try {
		var hdrs = JSON.parse(headersJSON);
		var controller;
		var stream = new ReadableStream({
			start: function(c) { controller = c; }
		});
		globalThis.__fetchStreams[fetchID] = { controller: controller };
		var r = new Response(stream, {status: status, statusText: statusText, headers: hdrs});
		if (redirected) Object.defineProperty(r, 'redirected', {value: true, writable: false});
		Object.defineProperty(r, 'url', {value: finalURL || '', writable: false});
		entry.resolve(r);
	} catch (e) { entry.reject(e); }
};

globalThis.__fetchChunk = function(fetchID, chunkB64) {
	var s = globalThis.__fetchStreams[fetchID];
	if (!s || !s.controller) return;
	try { s.controller.enqueue(__b64ToBuffer(chunkB64)); } catch (e) {}
};

globalThis.__fetchDone = function(fetchID) {
	var s = globalThis.__fetchStreams[fetchID];
	delete globalThis.__fetchStreams[fetchID];
	if (s && s.controller) { try { s.controller.close(); } catch (e) {} }
};

globalThis.__fetchError = function(fetchID, errMsg) {
	var entry = globalThis.__fetchPromises[fetchID];
	var stream = globalThis.__fetchStreams[fetchID];
	delete globalThis.__fetchPromises[fetchID];
	delete globalThis.__fetchStreams[fetchID];
	var isAbort = errMsg.indexOf('operation was aborted') !== -1;
	var err = isAbort ? new DOMException('The operation was aborted.', 'AbortError') : new TypeError(errMsg);
	if (entry && !entry.settled) {
		entry.settled = true;
		entry.reject(err);
	} else if (stream && stream.controller) {
		try { stream.controller.error(err); } catch (e) {}
	}
};
})();
`

// SetupFetch registers Go-backed fetch helpers and evaluates the JS polyfill.
func SetupFetch(rt core.JSRuntime, cfg core.Config, el *eventloop.EventLoop) error {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := int64(cfg.MaxResponseBytes)
	if maxBytes == 0 {
		maxBytes = 10 * 1024 * 1024
	}

	// __fetchStart(ctxIDStr, argsJSON) -> fetchID
	if err := rt.RegisterFunc("__fetchStart", func(ctxIDStr, argsJSON string) (string, error) {
		ctxID := core.ParseReqID(ctxIDStr)
		state := core.GetExecutionState(ctxID)
		if state != nil && state.FetchCount >= state.MaxFetches {
			return "", fmt.Errorf("exceeded maximum fetch requests (%d)", state.MaxFetches)
		}
		if state != nil {
			state.FetchCount++
		}

		var args struct {
			URL          string `json:"url"`
			Method       string `json:"method"`
			HeadersJSON  string `json:"headersJSON"`
			Body         string `json:"body"`
			BodyIsBase64 bool   `json:"bodyIsBase64"`
			BodyIsStream bool   `json:"bodyIsStream"`
			Redirect     string `json:"redirect"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("fetch: parsing arguments: %s", err.Error())
		}

		if args.URL == "" {
			return "", fmt.Errorf("fetch requires at least 1 argument")
		}
		if FetchSSRFEnabled && IsPrivateHostname(args.URL) {
			return "", fmt.Errorf("fetch to private IP addresses is not allowed")
		}

		var headers map[string]string
		if args.HeadersJSON != "" && args.HeadersJSON != "{}" {
			if err := json.Unmarshal([]byte(args.HeadersJSON), &headers); err != nil {
				return "", fmt.Errorf("fetch: parsing headers: %s", err.Error())
			}
		}

		var bodyReader io.Reader
		var pw *io.PipeWriter
		switch {
		case args.BodyIsStream:
			var pr *io.PipeReader
			pr, pw = io.Pipe()
			bodyReader = pr
		case args.BodyIsBase64 && args.Body != "":
			decoded, err := base64.StdEncoding.DecodeString(args.Body)
			if err != nil {
				return "", fmt.Errorf("fetch: decoding binary body: %s", err.Error())
			}
			bodyReader = strings.NewReader(string(decoded))
		case args.Body != "":
			bodyReader = strings.NewReader(args.Body)
		}

		fetchCtx, fetchCancel := context.WithCancel(context.Background())
		localID := core.RegisterFetchCancel(ctxID, fetchCancel)
		fetchID := fmt.Sprintf("%d-%s", ctxID, localID)

		if pw != nil {
			bodyPipesMu.Lock()
			bodyPipes[fetchID] = pw
			bodyPipesMu.Unlock()
		}

		httpReq, err := http.NewRequestWithContext(fetchCtx, args.Method, args.URL, bodyReader)
		if err != nil {
			fetchCancel()
			core.RemoveFetchCancel(ctxID, localID)
			return "", fmt.Errorf("fetch: %s", err.Error())
		}
		for k, v := range headers {
			if ForbiddenFetchHeaders[strings.ToLower(k)] {
				continue
			}
			httpReq.Header.Set(k, v)
		}

		redirectMode := args.Redirect
		if redirectMode == "" {
			redirectMode = "follow"
		}
		var checkRedirect func(req *http.Request, via []*http.Request) error
		switch redirectMode {
		case "manual":
			checkRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
		case "error":
			checkRedirect = func(req *http.Request, via []*http.Request) error {
				return fmt.Errorf("fetch failed: redirect mode is 'error'")
			}
		default:
			checkRedirect = func(req *http.Request, via []*http.Request) error {
				if len(via) >= 20 {
					return fmt.Errorf("too many redirects")
				}
				if FetchSSRFEnabled && IsPrivateHostname(req.URL.String()) {
					return fmt.Errorf("redirect to private IP address is not allowed")
				}
				return nil
			}
		}

		client := &http.Client{
			Timeout:       timeout,
			Transport:     FetchTransport,
			CheckRedirect: checkRedirect,
		}

		capturedRedirectMode := redirectMode
		capturedURL := args.URL
		capturedFetchCtx := fetchCtx
		capturedFetchCancel := fetchCancel

		events := make(chan eventloop.FetchEvent)
		go func() {
			defer close(events)
			defer capturedFetchCancel()
			defer func() {
				bodyPipesMu.Lock()
				delete(bodyPipes, fetchID)
				bodyPipesMu.Unlock()
			}()

			resp, httpErr := client.Do(httpReq)
			if httpErr != nil {
				abortedBySignal := capturedFetchCtx.Err() != nil
				core.RemoveFetchCancel(ctxID, localID)
				switch {
				case capturedRedirectMode == "error":
					events <- eventloop.FetchEvent{Kind: "error", Err: fmt.Errorf("fetch failed: redirect mode is 'error'")}
				case abortedBySignal:
					events <- eventloop.FetchEvent{Kind: "error", Err: fmt.Errorf("the operation was aborted")}
				default:
					events <- eventloop.FetchEvent{Kind: "error", Err: fmt.Errorf("fetch: %s", httpErr.Error())}
				}
				return
			}
			defer func() { _ = resp.Body.Close() }()
			core.RemoveFetchCancel(ctxID, localID)

			respHeaders := make(map[string]string)
			for k, vals := range resp.Header {
				respHeaders[strings.ToLower(k)] = strings.Join(vals, ", ")
			}
			hdrsJSON, _ := json.Marshal(respHeaders)

			finalURL := capturedURL
			if resp.Request != nil && resp.Request.URL != nil {
				finalURL = resp.Request.URL.String()
			}
			redirected := finalURL != capturedURL

			events <- eventloop.FetchEvent{
				Kind:        "headers",
				Status:      resp.StatusCode,
				StatusText:  resp.Status,
				HeadersJSON: string(hdrsJSON),
				Redirected:  redirected,
				FinalURL:    finalURL,
			}

			buf := make([]byte, 32*1024)
			var total int64
			for {
				n, readErr := resp.Body.Read(buf)
				if n > 0 {
					total += int64(n)
					if total > maxBytes {
						events <- eventloop.FetchEvent{Kind: "error", Err: fmt.Errorf("fetch: response exceeded maximum size of %d bytes", maxBytes)}
						return
					}
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					events <- eventloop.FetchEvent{Kind: "chunk", ChunkB64: base64.StdEncoding.EncodeToString(chunk)}
				}
				if readErr == io.EOF {
					events <- eventloop.FetchEvent{Kind: "done"}
					return
				}
				if readErr != nil {
					events <- eventloop.FetchEvent{Kind: "error", Err: fmt.Errorf("fetch: reading body: %s", readErr.Error())}
					return
				}
			}
		}()

		el.AddPendingFetch(&eventloop.PendingFetch{Events: events, FetchID: fetchID})
		return fetchID, nil
	}); err != nil {
		return err
	}

	// __fetchPushChunk(fetchID, base64) pushes a streaming request body chunk.
	if err := rt.RegisterFunc("__fetchPushChunk", func(fetchID, chunkB64 string) error {
		bodyPipesMu.Lock()
		pw := bodyPipes[fetchID]
		bodyPipesMu.Unlock()
		if pw == nil {
			return nil
		}
		data, err := base64.StdEncoding.DecodeString(chunkB64)
		if err != nil {
			return fmt.Errorf("fetch: decoding request chunk: %s", err.Error())
		}
		_, err = pw.Write(data)
		return err
	}); err != nil {
		return err
	}

	// __fetchEndBody(fetchID) closes a streaming request body.
	if err := rt.RegisterFunc("__fetchEndBody", func(fetchID string) {
		bodyPipesMu.Lock()
		pw := bodyPipes[fetchID]
		delete(bodyPipes, fetchID)
		bodyPipesMu.Unlock()
		if pw != nil {
			_ = pw.Close()
		}
	}); err != nil {
		return err
	}

	// __fetchAbort(ctxID, fetchID)
	if err := rt.RegisterFunc("__fetchAbort", func(ctxIDStr, fetchID string) {
		ctxID := core.ParseReqID(ctxIDStr)
		localID := strings.TrimPrefix(fetchID, ctxIDStr+"-")
		core.CallFetchCancel(ctxID, localID)
		bodyPipesMu.Lock()
		pw := bodyPipes[fetchID]
		delete(bodyPipes, fetchID)
		bodyPipesMu.Unlock()
		if pw != nil {
			_ = pw.CloseWithError(fmt.Errorf("the operation was aborted"))
		}
	}); err != nil {
		return err
	}

	return rt.Eval(fetchJS)
}

// --- SSRF Protection ---

// IsPrivateHostname performs a fast, non-resolving pre-check for obviously
// private hostnames and literal IP addresses.
func IsPrivateHostname(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	hostname := u.Hostname()
	if hostname == "" {
		return true
	}
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return IsPrivateIP(ip)
	}
	return false
}

// ssrfSafeDialContext resolves DNS and validates the resolved IP against
// private ranges at connect time, preventing DNS rebinding / TOCTOU attacks.
func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	var safeIP net.IPAddr
	found := false
	for _, ip := range ips {
		if !IsPrivateIP(ip.IP) {
			safeIP = ip
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("fetch to private IP addresses is not allowed")
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(safeIP.IP.String(), port))
}

// privateRanges is parsed once at init time.
var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8",
		"169.254.0.0/16", "172.16.0.0/12", "192.0.0.0/24", "192.0.2.0/24",
		"192.168.0.0/16", "198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24",
		"240.0.0.0/4",
		"::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR: " + cidr)
		}
		privateRanges = append(privateRanges, n)
	}
}

// IsPrivateIP returns true if the IP is in a private, loopback, or link-local range.
func IsPrivateIP(ip net.IP) bool {
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
