package trace

import (
	"context"
	"testing"
)

func TestEnsureKeepsExistingTraceID(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	got, id := Ensure(ctx)
	if id != "abc" {
		t.Fatalf("trace id = %q, want abc", id)
	}
	if FromContext(got) != "abc" {
		t.Fatalf("context lost trace id")
	}
}

func TestEnsureGeneratesTraceID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatal("expected generated trace id")
	}
	if FromContext(ctx) != id {
		t.Fatalf("FromContext = %q, want %q", FromContext(ctx), id)
	}
}
