package otel

import "testing"

func TestMQHeaderCarrier(t *testing.T) {
	headers := map[string]interface{}{"x-trace-id": "abc", "retry": 3}
	c := NewMQHeaderCarrier(headers)

	c.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	if got := headers["traceparent"]; got != "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01" {
		t.Fatalf("Set did not write through to headers: %v", got)
	}
	if got := c.Get("x-trace-id"); got != "abc" {
		t.Fatalf("Get(x-trace-id) = %q", got)
	}
	if got := c.Get("retry"); got != "" {
		t.Fatalf("non-string header should read as empty, got %q", got)
	}
	if got := len(c.Keys()); got != 3 {
		t.Fatalf("Keys() len = %d, want 3", got)
	}
}

func TestNilHeadersCarrier(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	c.Set("k", "v")
	if c.Get("k") != "v" {
		t.Fatal("carrier over nil headers should still accept writes")
	}
}
