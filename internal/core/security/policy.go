// Package security provides approval policy evaluation.
//
// Permission gating (may this user call this endpoint at all) is the caller's
// job and happens in HTTP middleware. The policy here covers the one rule that
// is intrinsic to the engine: whether a given actor may approve a given
// document. Policies are CEL expressions so deployments can tighten the rule
// without recompiling.
package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"stockcore/internal/core/apperror"
)

// DefaultApprovalExpression enforces the four-eyes rule: the approver must
// not be the actor who created the document.
const DefaultApprovalExpression = `actor_id != created_by`

// ApprovalInput carries the facts a policy may reason about.
type ApprovalInput struct {
	ActorID      string
	CreatedBy    string
	DocumentType string
	Permissions  []string
}

// ApprovalPolicy decides whether an actor may approve a document.
type ApprovalPolicy interface {
	// Authorize returns nil if approval is permitted, a Forbidden AppError otherwise.
	Authorize(ctx context.Context, in ApprovalInput) error
}

// CELPolicy evaluates a compiled CEL expression against ApprovalInput.
type CELPolicy struct {
	expression string
	program    cel.Program
}

// NewCELPolicy compiles the expression once; evaluation is cheap per call.
func NewCELPolicy(expression string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("actor_id", cel.StringType),
		cel.Variable("created_by", cel.StringType),
		cel.Variable("document_type", cel.StringType),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile approval policy: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("approval policy must evaluate to bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build approval program: %w", err)
	}

	return &CELPolicy{expression: expression, program: program}, nil
}

// MustCELPolicy compiles the expression, panics on error.
// Use only for constants and tests.
func MustCELPolicy(expression string) *CELPolicy {
	p, err := NewCELPolicy(expression)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultApprovalPolicy returns the built-in four-eyes policy.
func DefaultApprovalPolicy() *CELPolicy {
	return MustCELPolicy(DefaultApprovalExpression)
}

// Authorize implements ApprovalPolicy.
func (p *CELPolicy) Authorize(ctx context.Context, in ApprovalInput) error {
	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}

	out, _, err := p.program.Eval(map[string]any{
		"actor_id":      in.ActorID,
		"created_by":    in.CreatedBy,
		"document_type": in.DocumentType,
		"permissions":   perms,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate approval policy: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("approval policy returned %T, want bool", out.Value()))
	}

	if !allowed {
		return apperror.NewForbidden("actor may not approve this document").
			WithDetail("document_type", in.DocumentType).
			WithDetail("policy", p.expression)
	}

	return nil
}

// AllowAll is a policy that permits every approval. Test helper.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context, in ApprovalInput) error { return nil }
