package governance

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a table action about to run.
type Request struct {
	Action  string
	Payload string
	Source  string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates actions against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies actions by name, by name for one source, or by
// a pattern in their payload. Everything else is allowed.
type DefaultPolicyEngine struct {
	mu            sync.RWMutex
	DeniedActions map[string]bool
	DeniedSources map[string]map[string]bool
	DeniedRegex   []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
		DeniedSources: make(map[string]map[string]bool),
		DeniedRegex:   make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyAction(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DeniedActions[name] = true
}

// DenyActionFrom denies name only when it comes from source.
func (e *DefaultPolicyEngine) DenyActionFrom(source, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.DeniedSources[source] == nil {
		e.DeniedSources[source] = make(map[string]bool)
	}
	e.DeniedSources[source][name] = true
}

func (e *DefaultPolicyEngine) DenyPayload(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.DeniedActions[req.Action] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' is restricted by system policy", req.Action),
		}, nil
	}

	if e.DeniedSources[req.Source][req.Action] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' is not allowed from %s", req.Action, req.Source),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Payload) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Payload matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
