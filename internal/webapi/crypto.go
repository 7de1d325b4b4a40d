package webapi

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
)

// cryptoJS wires up the global crypto object with getRandomValues and
// randomUUID backed by Go helper functions. crypto.subtle is out of scope
// (see DESIGN.md) — this repo exposes only the CSPRNG and UUID surface.
const cryptoJS = `
(function() {
	const _b64e = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	const _b64d = new Uint8Array(128);
	for (let i = 0; i < _b64e.length; i++) _b64d[_b64e.charCodeAt(i)] = i;

	const crypto = {};

	const _integerViews = ['Int8Array', 'Uint8Array', 'Uint8ClampedArray', 'Int16Array',
		'Uint16Array', 'Int32Array', 'Uint32Array', 'BigInt64Array', 'BigUint64Array'];

	crypto.getRandomValues = function(typedArray) {
		const ctorName = typedArray && typedArray.constructor && typedArray.constructor.name;
		if (!typedArray || typeof typedArray.byteLength !== 'number' || _integerViews.indexOf(ctorName) === -1) {
			throw new DOMException('The provided ArrayBufferView is not an integer type', 'TypeMismatchError');
		}
		if (typedArray.byteLength > 65536) {
			throw new DOMException('byteLength exceeds the maximum', 'QuotaExceededError');
		}
		// Fill the raw bytes backing the view, not its elements: a
		// Uint32Array(4) needs 16 random bytes, not 4.
		const bytes = new Uint8Array(typedArray.buffer, typedArray.byteOffset, typedArray.byteLength);
		const b64 = __cryptoGetRandomBytes(bytes.byteLength);
		let j = 0;
		for (let i = 0; i < b64.length; i += 4) {
			const a = _b64d[b64.charCodeAt(i)];
			const b = _b64d[b64.charCodeAt(i + 1)];
			const c = _b64d[b64.charCodeAt(i + 2)];
			const d = _b64d[b64.charCodeAt(i + 3)];
			if (j < bytes.byteLength) bytes[j++] = (a << 2) | (b >> 4);
			if (j < bytes.byteLength) bytes[j++] = ((b & 15) << 4) | (c >> 2);
			if (j < bytes.byteLength) bytes[j++] = ((c & 3) << 6) | d;
		}
		return typedArray;
	};

	crypto.randomUUID = function() {
		return __cryptoRandomUUID();
	};

	function __bufferSourceToB64(data) {
		let arr;
		if (data instanceof ArrayBuffer) {
			arr = new Uint8Array(data);
		} else if (data && data.buffer instanceof ArrayBuffer) {
			arr = new Uint8Array(data.buffer, data.byteOffset || 0, data.byteLength || data.length);
		} else if (data && typeof data.length === 'number') {
			arr = new Uint8Array(data.length);
			for (let i = 0; i < data.length; i++) arr[i] = data[i];
		} else {
			throw new TypeError('expected BufferSource');
		}
		const len = arr.length;
		const parts = [];
		for (let i = 0; i < len; i += 3) {
			const a = arr[i];
			const b = i + 1 < len ? arr[i + 1] : 0;
			const c = i + 2 < len ? arr[i + 2] : 0;
			parts.push(
				_b64e[a >> 2],
				_b64e[((a & 3) << 4) | (b >> 4)],
				i + 1 < len ? _b64e[((b & 15) << 2) | (c >> 6)] : '=',
				i + 2 < len ? _b64e[c & 63] : '='
			);
		}
		return parts.join('');
	}

	function __b64ToBuffer(b64) {
		let pad = 0;
		if (b64.length > 0 && b64[b64.length - 1] === '=') pad++;
		if (b64.length > 1 && b64[b64.length - 2] === '=') pad++;
		const outLen = (b64.length * 3 / 4) - pad;
		const buf = new ArrayBuffer(outLen);
		const out = new Uint8Array(buf);
		let j = 0;
		for (let i = 0; i < b64.length; i += 4) {
			const a = _b64d[b64.charCodeAt(i)];
			const b = _b64d[b64.charCodeAt(i + 1)];
			const c = _b64d[b64.charCodeAt(i + 2)];
			const d = _b64d[b64.charCodeAt(i + 3)];
			out[j++] = (a << 2) | (b >> 4);
			if (j < outLen) out[j++] = ((b & 15) << 4) | (c >> 2);
			if (j < outLen) out[j++] = ((c & 3) << 6) | d;
		}
		return buf;
	}

	globalThis.crypto = crypto;
	globalThis.__bufferSourceToB64 = __bufferSourceToB64;
	globalThis.__b64ToBuffer = __b64ToBuffer;
})();
`

// SetupCrypto registers Go-backed crypto helpers and evaluates the JS wrapper.
func SetupCrypto(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	// __cryptoGetRandomBytes(n) -> base64 string of n random bytes.
	if err := rt.RegisterFunc("__cryptoGetRandomBytes", func(n int) (string, error) {
		if n <= 0 || n > 65536 {
			return "", fmt.Errorf("getRandomValues: byte length must be 1-65536")
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("crypto/rand: %v", err)
		}
		return base64.StdEncoding.EncodeToString(buf), nil
	}); err != nil {
		return err
	}

	// __cryptoRandomUUID() -> UUID v4 string.
	if err := rt.RegisterFunc("__cryptoRandomUUID", func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("crypto/rand: %v", err)
		}
		return id.String(), nil
	}); err != nil {
		return err
	}

	if err := rt.Eval(cryptoJS); err != nil {
		return fmt.Errorf("evaluating crypto.js: %w", err)
	}

	// Override __bufferSourceToB64 with a Go-backed hybrid when BinaryTransferer
	// is available: small buffers (<=64KB) use fast pure-JS btoa, large buffers
	// use the binary bridge with Go's base64.StdEncoding.EncodeToString.
	if bt, ok := rt.(core.BinaryTransferer); ok {
		_ = rt.SetGlobal("__binary_mode", bt.BinaryMode())

		if err := rt.RegisterFunc("__bufferSourceToB64_go", func() (string, error) {
			data, err := bt.ReadBinaryFromJS("__tmp_b64_buf")
			if err != nil {
				return "", fmt.Errorf("bufferSourceToB64: %w", err)
			}
			return base64.StdEncoding.EncodeToString(data), nil
		}); err != nil {
			return fmt.Errorf("registering __bufferSourceToB64_go: %w", err)
		}

		if err := rt.Eval(`globalThis.__bufferSourceToB64 = function(data) {
			var arr;
			if (data instanceof ArrayBuffer) {
				arr = new Uint8Array(data);
			} else if (data && data.buffer instanceof ArrayBuffer) {
				arr = new Uint8Array(data.buffer, data.byteOffset || 0, data.byteLength || data.length);
			} else if (data && typeof data.length === 'number') {
				arr = new Uint8Array(data.length);
				for (var i = 0; i < data.length; i++) arr[i] = data[i];
			} else {
				throw new TypeError('expected BufferSource');
			}
			if (arr.byteLength <= 65536) {
				var _parts = [];
				for (var _i = 0; _i < arr.length; _i += 8192) {
					_parts.push(String.fromCharCode.apply(null, arr.subarray(_i, Math.min(_i + 8192, arr.length))));
				}
				return btoa(_parts.join(''));
			}
			var _bm = globalThis.__binary_mode || 'sab';
			var _buf = (_bm === 'sab') ? new SharedArrayBuffer(arr.byteLength) : new ArrayBuffer(arr.byteLength);
			new Uint8Array(_buf).set(arr);
			globalThis.__tmp_b64_buf = _buf;
			return __bufferSourceToB64_go();
		};`); err != nil {
			return fmt.Errorf("overriding __bufferSourceToB64: %w", err)
		}
	}

	return nil
}
