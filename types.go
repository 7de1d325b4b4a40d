package edgejs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ionlattice/edgejs/internal/core"
)

// LogEntry is a single console.log/warn/error/... captured from a Context.
type LogEntry = core.LogEntry

// Value wraps the result of Context.Evaluate/Context.Await. Internally it
// holds the small JSON envelope the engine backends produce: {"value": ...}
// for any JSON-representable result, or {"undefined": true} for JS
// undefined, which JSON cannot express directly.
type Value struct {
	envelope string
	decoded  bool
	raw      any
	isUndef  bool
}

func newValue(res *core.EvalResult) Value {
	if res == nil {
		return Value{isUndef: true, decoded: true}
	}
	return Value{envelope: res.JSON}
}

func (v *Value) ensureDecoded() {
	if v.decoded {
		return
	}
	v.decoded = true
	if v.envelope == "" {
		v.isUndef = true
		return
	}
	var env struct {
		Value     any  `json:"value"`
		Undefined bool `json:"undefined"`
	}
	if err := json.Unmarshal([]byte(v.envelope), &env); err != nil {
		v.raw = v.envelope
		return
	}
	v.isUndef = env.Undefined
	v.raw = env.Value
}

// IsUndefined reports whether the underlying JS value was undefined.
func (v Value) IsUndefined() bool {
	v.ensureDecoded()
	return v.isUndef
}

// Raw returns the decoded Go value: nil, bool, float64, string,
// []any, or map[string]any, following encoding/json's default decoding.
func (v Value) Raw() any {
	v.ensureDecoded()
	return v.raw
}

// String renders the value for display, matching JS's implicit
// String(value) coercion for the common scalar cases.
func (v Value) String() string {
	v.ensureDecoded()
	if v.isUndef {
		return "undefined"
	}
	switch t := v.raw.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e21 {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

// JSON returns the canonical JSON encoding of the value. Undefined encodes
// as the JSON literal null, matching JSON.stringify's treatment of
// undefined inside an array (there is no way to recover the distinction
// from JSON alone; use IsUndefined beforehand if it matters).
func (v Value) JSON() ([]byte, error) {
	v.ensureDecoded()
	if v.isUndef {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// IsAbortError reports whether err was produced by an AbortSignal-driven
// cancellation (fetch, pipeTo, or an explicitly aborted operation).
func IsAbortError(err error) bool {
	return errContains(err, "AbortError")
}

// IsTypeError reports whether err corresponds to a JS TypeError thrown at
// an API boundary (argument/shape validation, invalid Request/Response
// construction, fetch network failures surfaced per Fetch semantics).
func IsTypeError(err error) bool {
	return errContains(err, "TypeError")
}

func errContains(err error, needle string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for i := 0; i+len(needle) <= len(msg); i++ {
		if msg[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
