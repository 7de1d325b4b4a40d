package webapi

import (
	"fmt"

	"github.com/ionlattice/edgejs/internal/core"
)

// GetReqIDFromJS reads the __contextID global and parses it to uint64.
func GetReqIDFromJS(rt core.JSRuntime) uint64 {
	s, err := rt.EvalString("String(globalThis.__contextID || '')")
	if err != nil {
		return 0
	}
	return core.ParseReqID(s)
}

// SerializeGlobal renders the value currently stored in globalThis[name] as a
// small JSON envelope: {"value": ...} for any JSON-representable value,
// {"undefined": true} for undefined (which JSON.stringify cannot express),
// or {"value": String(v)} for values JSON.stringify refuses (BigInt,
// cyclic structures caught by the try/catch, functions).
func SerializeGlobal(rt core.JSRuntime, name string) (string, error) {
	js := fmt.Sprintf(`(function() {
		var v = globalThis[%q];
		if (v === undefined) return JSON.stringify({undefined: true});
		try {
			var s = JSON.stringify({value: v});
			return s === undefined ? JSON.stringify({value: String(v)}) : s;
		} catch (e) {
			return JSON.stringify({value: String(v)});
		}
	})()`, name)
	return rt.EvalString(js)
}
