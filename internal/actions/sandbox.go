package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrSandboxKilled is returned when a script is interrupted by the timeout
// or memory governor rather than failing on its own.
var ErrSandboxKilled = errors.New("actions: script killed (timeout or memory cap)")

// runResult is what one sandboxed execution produces.
type runResult struct {
	context *ExecutionContext
	console []string
	err     error
}

// runScript executes script in a fresh goja.Runtime with no filesystem or
// network bindings — the only I/O is the injected context object and
// captured console output, per §4.9. It is hard-killed on wall-clock
// timeout or on exceeding memCapBytes of additional heap growth, sampled by
// a background goroutine calling vm.Interrupt.
func runScript(ctx context.Context, script string, input *ExecutionContext, timeout time.Duration, memCapBytes uint64) runResult {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	var console []string
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		console = append(console, strings.Join(parts, " "))
		return goja.Undefined()
	}
	consoleObj := vm.NewObject()
	_ = consoleObj.Set("log", logFn)
	_ = consoleObj.Set("warn", logFn)
	_ = consoleObj.Set("error", logFn)
	_ = vm.Set("console", consoleObj)

	if err := vm.Set("context", input); err != nil {
		return runResult{err: fmt.Errorf("binding context: %w", err)}
	}

	stop := make(chan struct{})
	defer close(stop)

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("timeout exceeded")
	})
	defer timer.Stop()

	if memCapBytes > 0 {
		go memoryGovernor(vm, memCapBytes, stop)
	}

	wrapped := "(function(context) {\n" + script + "\n  return context;\n})(context)"

	value, err := vm.RunString(wrapped)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return runResult{console: console, err: ErrSandboxKilled}
		}
		return runResult{console: console, err: err}
	}

	out, err := exportContext(value, input)
	if err != nil {
		return runResult{console: console, err: err}
	}
	return runResult{context: out, console: console}
}

// memoryGovernor samples process heap growth since it started and
// interrupts the VM once the script's run has plausibly allocated past the
// cap. This is a coarse, process-wide proxy (goja has no per-Runtime
// allocation counter) rather than a precise per-VM accounting.
func memoryGovernor(vm *goja.Runtime, capBytes uint64, stop <-chan struct{}) {
	var base runtime.MemStats
	runtime.ReadMemStats(&base)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var cur runtime.MemStats
			runtime.ReadMemStats(&cur)
			if cur.HeapAlloc > base.HeapAlloc && cur.HeapAlloc-base.HeapAlloc > capBytes {
				vm.Interrupt("memory cap exceeded")
				return
			}
		}
	}
}

// exportContext pulls the script's returned context back into Go, falling
// back to a copy of the input context when the script returned undefined
// or null; any other value that does not decode as a context is an error.
func exportContext(value goja.Value, fallback *ExecutionContext) (*ExecutionContext, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return cloneContext(fallback), nil
	}

	raw, err := json.Marshal(value.Export())
	if err != nil {
		return nil, fmt.Errorf("marshaling script result: %w", err)
	}
	var out ExecutionContext
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling script result: %w", err)
	}
	if out.Claims == nil {
		out.Claims = map[string]interface{}{}
	}
	return &out, nil
}
