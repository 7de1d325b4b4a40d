package webapi

import (
	"fmt"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
)

// fileReaderJS implements FileReader as a pure JS polyfill on top of Blob
// and EventTarget. Reads are asynchronous (deferred via queueMicrotask) even
// though the underlying Blob.arrayBuffer()/text() calls already return
// promises, to mirror the progress-event sequencing real FileReader callers
// expect (loadstart before load/error, always followed by loadend).
const fileReaderJS = `
class FileReader extends EventTarget {
	constructor() {
		super();
		this.readyState = FileReader.EMPTY;
		this.result = null;
		this.error = null;
		this.onload = null;
		this.onloadstart = null;
		this.onloadend = null;
		this.onerror = null;
		this.onabort = null;
		this.onprogress = null;
		this._aborted = false;
	}

	_fire(type) {
		const ev = new ProgressEvent(type, { lengthComputable: false, loaded: 0, total: 0 });
		const handler = this['on' + type];
		if (typeof handler === 'function') handler.call(this, ev);
		this.dispatchEvent(ev);
	}

	_read(blob, mode, encodingOrNothing) {
		if (this.readyState === FileReader.LOADING) {
			throw new DOMException('The object is already busy reading Blobs.', 'InvalidStateError');
		}
		if (!(blob instanceof Blob)) {
			throw new TypeError('FileReader requires a Blob or File argument');
		}
		this.readyState = FileReader.LOADING;
		this.result = null;
		this.error = null;
		this._aborted = false;
		this._fire('loadstart');

		const self = this;
		const finish = function(value) {
			if (self._aborted) return;
			self.readyState = FileReader.DONE;
			self.result = value;
			self._fire('progress');
			self._fire('load');
			self._fire('loadend');
		};
		const fail = function(err) {
			if (self._aborted) return;
			self.readyState = FileReader.DONE;
			self.error = err instanceof DOMException ? err : new DOMException(String(err && err.message || err), 'NotReadableError');
			self._fire('error');
			self._fire('loadend');
		};

		queueMicrotask(function() {
			if (self._aborted) return;
			let p;
			if (mode === 'text') {
				p = blob.text();
				if (encodingOrNothing) {
					p = blob.arrayBuffer().then(function(buf) {
						return new TextDecoder(encodingOrNothing).decode(buf);
					});
				}
			} else if (mode === 'arraybuffer') {
				p = blob.arrayBuffer();
			} else if (mode === 'binarystring') {
				p = blob.arrayBuffer().then(function(buf) {
					const bytes = new Uint8Array(buf);
					let s = '';
					for (let i = 0; i < bytes.length; i++) s += String.fromCharCode(bytes[i]);
					return s;
				});
			} else if (mode === 'dataurl') {
				p = blob.arrayBuffer().then(function(buf) {
					const bytes = new Uint8Array(buf);
					let s = '';
					for (let i = 0; i < bytes.length; i += 8192) {
						s += String.fromCharCode.apply(null, bytes.subarray(i, Math.min(i + 8192, bytes.length)));
					}
					const mime = blob.type || 'application/octet-stream';
					return 'data:' + mime + ';base64,' + btoa(s);
				});
			}
			p.then(finish, fail);
		});
	}

	readAsText(blob, encoding) { this._read(blob, 'text', encoding); }
	readAsArrayBuffer(blob) { this._read(blob, 'arraybuffer'); }
	readAsBinaryString(blob) { this._read(blob, 'binarystring'); }
	readAsDataURL(blob) { this._read(blob, 'dataurl'); }

	abort() {
		if (this.readyState === FileReader.EMPTY || this.readyState === FileReader.DONE) return;
		this._aborted = true;
		this.readyState = FileReader.DONE;
		this.result = null;
		this._fire('abort');
		this._fire('loadend');
	}
}

FileReader.EMPTY = 0;
FileReader.LOADING = 1;
FileReader.DONE = 2;

class ProgressEvent extends Event {
	constructor(type, init) {
		super(type, init);
		this.lengthComputable = !!(init && init.lengthComputable);
		this.loaded = (init && init.loaded) || 0;
		this.total = (init && init.total) || 0;
	}
}

globalThis.FileReader = FileReader;
globalThis.ProgressEvent = ProgressEvent;
`

// SetupFileReader evaluates the FileReader/ProgressEvent polyfill. Must run
// after SetupAbort (EventTarget, DOMException) and SetupFormData (Blob).
func SetupFileReader(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.Eval(fileReaderJS); err != nil {
		return fmt.Errorf("evaluating filereader.js: %w", err)
	}
	return nil
}
