package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctx = WithInvocationID(ctx, "inv-1")
	if got, ok := InvocationID(ctx); !ok || got != "inv-1" {
		t.Fatalf("InvocationID mismatch: %v %v", got, ok)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithTenantID(ctx, "tenant")
	if got, ok := TenantID(ctx); !ok || got != "tenant" {
		t.Fatalf("TenantID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	ctx = WithSkillName(ctx, "discord")
	if got, ok := SkillName(ctx); !ok || got != "discord" {
		t.Fatalf("SkillName mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := InvocationID(ctx); ok {
		t.Fatalf("expected missing invocation ID")
	}

	// Empty strings are treated as absent.
	ctx = WithTenantID(ctx, "")
	if _, ok := TenantID(ctx); ok {
		t.Fatalf("expected empty tenant ID to be absent")
	}
}
