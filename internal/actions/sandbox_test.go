package actions

import (
	"context"
	"strings"
	"testing"
	"time"
)

func baseContext() *ExecutionContext {
	return &ExecutionContext{
		User:    UserInfo{ID: "u1", Email: "a@example.com", DisplayName: "A"},
		Tenant:  TenantInfo{ID: "t1", Slug: "acme"},
		Request: RequestInfo{IP: "127.0.0.1", UserAgent: "test", Timestamp: 1},
		Claims:  map[string]interface{}{},
	}
}

func TestRunScript_MutatesClaims(t *testing.T) {
	script := `context.claims.role = "admin"; console.log("hello", "world");`
	res := runScript(context.Background(), script, baseContext(), time.Second, 0)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.context.Claims["role"] != "admin" {
		t.Errorf("expected role claim to be set, got %v", res.context.Claims)
	}
	if len(res.console) != 1 || !strings.Contains(res.console[0], "hello world") {
		t.Errorf("expected captured console output, got %v", res.console)
	}
}

func TestRunScript_ThrownErrorPropagates(t *testing.T) {
	script := `throw new Error("registration blocked: domain not allowed");`
	res := runScript(context.Background(), script, baseContext(), time.Second, 0)
	if res.err == nil {
		t.Fatal("expected thrown script error to propagate")
	}
	if !strings.Contains(res.err.Error(), "registration blocked") {
		t.Errorf("expected error message to carry through, got %v", res.err)
	}
}

func TestRunScript_TimeoutKillsInfiniteLoop(t *testing.T) {
	script := `while (true) {}`
	res := runScript(context.Background(), script, baseContext(), 50*time.Millisecond, 0)
	if res.err != ErrSandboxKilled {
		t.Fatalf("expected ErrSandboxKilled, got %v", res.err)
	}
}

func TestRunScript_NoFilesystemOrNetworkBindings(t *testing.T) {
	for _, global := range []string{"require", "process", "fetch", "fs"} {
		script := `if (typeof ` + global + ` !== "undefined") { throw new Error("unexpected global: ` + global + `"); }`
		res := runScript(context.Background(), script, baseContext(), time.Second, 0)
		if res.err != nil {
			t.Errorf("global %q should not be bound: %v", global, res.err)
		}
	}
}

func TestRunScript_MissingReturnFallsBackToInput(t *testing.T) {
	script := `context.claims.touched = true;`
	input := baseContext()
	res := runScript(context.Background(), script, input, time.Second, 0)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.context.Claims["touched"] != true {
		t.Errorf("expected returned context to reflect mutation, got %v", res.context.Claims)
	}
}
