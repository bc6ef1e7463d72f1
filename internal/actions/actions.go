// Package actions is the Actions Engine (§4.9): at each well-known trigger
// point in the authentication pipeline it loads a tenant's enabled actions
// for that trigger, ordered by execution_order then id, and runs each one
// in an isolated goja sandbox. No teacher precedent exists for a scripting
// layer; grounded on the pack's r3e-network-service_layer manifest usage of
// github.com/dop251/goja.
package actions

import (
	"time"
)

// Trigger is one of the well-known pipeline hook points from §3's Action
// model. Triggers prefixed "pre-" can abort the pipeline; "post-" triggers
// cannot.
type Trigger string

const (
	TriggerPostLogin              Trigger = "post-login"
	TriggerPreUserRegistration    Trigger = "pre-user-registration"
	TriggerPostUserRegistration   Trigger = "post-user-registration"
	TriggerPostChangePassword     Trigger = "post-change-password"
	TriggerPostEmailVerification  Trigger = "post-email-verification"
	TriggerPreTokenRefresh        Trigger = "pre-token-refresh"
)

func (t Trigger) isPre() bool {
	return len(t) >= 4 && t[:4] == "pre-"
}

// DefaultTimeout and MaxTimeout are §3's "timeout in ms (≤10 000, default
// 3 000)".
const (
	DefaultTimeout = 3 * time.Second
	MaxTimeout     = 10 * time.Second

	// DefaultMemoryCapBytes bounds the heap growth the sandbox's memory
	// governor tolerates before interrupting a runaway script.
	DefaultMemoryCapBytes = 32 << 20
)

// RequestInfo is the "request" field of the injected context object.
type RequestInfo struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Timestamp int64  `json:"timestamp"`
}

// UserInfo and TenantInfo are the read-only identity facts exposed to a
// script; scripts can read but not widen these.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type TenantInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// ExecutionContext is the mutable "context" object a script receives and
// returns. Only Claims is writable from the script's perspective; User,
// Tenant and Request are carried through unchanged.
type ExecutionContext struct {
	User    UserInfo               `json:"user"`
	Tenant  TenantInfo             `json:"tenant"`
	Request RequestInfo            `json:"request"`
	Claims  map[string]interface{} `json:"claims"`
}

func cloneContext(c *ExecutionContext) *ExecutionContext {
	cp := *c
	cp.Claims = make(map[string]interface{}, len(c.Claims))
	for k, v := range c.Claims {
		cp.Claims[k] = v
	}
	return &cp
}
