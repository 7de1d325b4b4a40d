package webapi

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
)

// processJS defines the process facade. process.env is intentionally
// process-wide rather than per-Context, and is backed by a Proxy so that
// both reads and writes go through the host environment instead of a
// one-time snapshot.
const processJS = `
(function() {
	const process = {};
	process.env = new Proxy({}, {
		get(target, prop) {
			if (typeof prop !== 'string') return undefined;
			const r = JSON.parse(__processGetEnv(prop));
			return r.ok ? r.value : undefined;
		},
		set(target, prop, value) {
			__processSetEnv(String(prop), String(value));
			return true;
		},
		has(target, prop) {
			if (typeof prop !== 'string') return false;
			return JSON.parse(__processGetEnv(prop)).ok;
		},
		deleteProperty(target, prop) {
			__processDeleteEnv(String(prop));
			return true;
		},
		ownKeys(target) {
			return JSON.parse(__processEnvKeys());
		},
		getOwnPropertyDescriptor(target, prop) {
			if (typeof prop !== 'string') return undefined;
			const r = JSON.parse(__processGetEnv(prop));
			if (!r.ok) return undefined;
			return { value: r.value, enumerable: true, configurable: true, writable: true };
		},
	});
	process.argv = JSON.parse(__processArgv());
	process.pid = __processPid();
	process.platform = __processPlatform();
	process.cwd = function() {
		const r = JSON.parse(__processCwd());
		if (r.error) throw new Error(r.error);
		return r.value;
	};
	process.chdir = function(dir) {
		const r = JSON.parse(__processChdir(String(dir)));
		if (r.error) throw new Error(r.error);
	};
	process.exit = function(code) {
		code = code || 0;
		if (code < 0) code = 0;
		if (code > 255) code = 255;
		const err = new Error('process.exit called with code ' + code);
		err.name = 'ProcessExitError';
		err.code = code;
		throw err;
	};
	globalThis.process = process;
})();
`

// SetupProcess registers the process facade's Go-backed helpers and
// evaluates its JS wrapper. process.exit() does not terminate the host; it
// throws a ProcessExitError that unwinds the calling script, matching the
// single-VM-per-Context model where the host owns the process lifecycle.
func SetupProcess(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__processGetEnv", func(key string) (string, error) {
		v, ok := os.LookupEnv(key)
		b, err := json.Marshal(map[string]any{"ok": ok, "value": v})
		if err != nil {
			return `{"ok":false,"value":""}`, nil
		}
		return string(b), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processSetEnv", func(key, value string) error {
		return os.Setenv(key, value)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processDeleteEnv", func(key string) error {
		return os.Unsetenv(key)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processEnvKeys", func() (string, error) {
		keys := make([]string, 0, len(os.Environ()))
		for _, kv := range os.Environ() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					keys = append(keys, kv[:i])
					break
				}
			}
		}
		b, err := json.Marshal(keys)
		if err != nil {
			return "[]", nil
		}
		return string(b), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processArgv", func() (string, error) {
		b, err := json.Marshal(os.Args)
		if err != nil {
			return "[]", nil
		}
		return string(b), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processPid", func() int {
		return os.Getpid()
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processPlatform", func() string {
		return runtime.GOOS
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processCwd", func() (string, error) {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error()), nil
		}
		return fmt.Sprintf(`{"value":%q}`, dir), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__processChdir", func(dir string) (string, error) {
		if err := os.Chdir(dir); err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error()), nil
		}
		return `{}`, nil
	}); err != nil {
		return err
	}

	if err := rt.Eval(processJS); err != nil {
		return fmt.Errorf("evaluating process.js: %w", err)
	}
	return nil
}
