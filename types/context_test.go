package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "s1")
	if got, ok := SessionID(ctx); !ok || got != "s1" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithRound(ctx, "stage2")
	if got, ok := Round(ctx); !ok || got != "stage2" {
		t.Fatalf("Round mismatch: %v %v", got, ok)
	}

	ctx = WithMemberID(ctx, "openai/gpt-5")
	if got, ok := MemberID(ctx); !ok || got != "openai/gpt-5" {
		t.Fatalf("MemberID mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	t.Parallel()

	ctx := WithSessionID(context.Background(), "")
	if _, ok := SessionID(ctx); ok {
		t.Fatalf("empty session id should report not found")
	}
	if _, ok := Round(context.Background()); ok {
		t.Fatalf("missing round should report not found")
	}
}
