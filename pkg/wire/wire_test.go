package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlab/cdpkit/pkg/wire"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	want := wire.Message{
		ID:        7,
		SessionID: "abc123",
		Method:    "Page.navigate",
		Params:    json.RawMessage(`{"url":"https://example.com"}`),
	}
	b, err := wire.Serialize(want)
	require.NoError(t, err)

	got, err := wire.Parse(b)
	require.NoError(t, err)
	if !cmp.Equal(got, want) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want wire.Shape
	}{
		{"response", `{"id":1,"result":{}}`, wire.ShapeResponse},
		{"error response", `{"id":1,"error":{"code":-32601,"message":"Method not found"}}`, wire.ShapeErrorResponse},
		{"event", `{"method":"Page.loadEventFired","params":{}}`, wire.ShapeEvent},
		{"invalid json", `not json`, wire.ShapeInvalid},
		{"empty object", `{}`, wire.ShapeInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := wire.Classify([]byte(tc.raw))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMessageIsResponseIsEvent(t *testing.T) {
	resp := wire.Message{ID: 1, Result: json.RawMessage(`{}`)}
	assert.True(t, resp.IsResponse())
	assert.False(t, resp.IsEvent())

	event := wire.Message{Method: "Target.targetCreated", Params: json.RawMessage(`{}`)}
	assert.False(t, event.IsResponse())
	assert.True(t, event.IsEvent())
}

func TestIDAllocatorStartsAtOne(t *testing.T) {
	a := wire.NewIDAllocator()
	assert.Equal(t, int64(1), a.Next())
	assert.Equal(t, int64(2), a.Next())
	assert.Equal(t, int64(3), a.Next())
}

func TestIDAllocatorConcurrentUniqueness(t *testing.T) {
	a := wire.NewIDAllocator()
	const n = 200
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() { ids <- a.Next() }()
	}
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		id := <-ids
		if seen[id] {
			t.Fatalf("duplicate id allocated: %d", id)
		}
		seen[id] = true
	}
}

func TestMapCDPError(t *testing.T) {
	tests := []struct {
		code int64
		want wire.CDPKind
	}{
		{-32600, wire.CDPInvalidRequest},
		{-32601, wire.CDPMethodNotFound},
		{-32602, wire.CDPInvalidParams},
		{-32603, wire.CDPInternalError},
		{-32050, wire.CDPServerError},
		{-32000, wire.CDPServerError},
		{-32099, wire.CDPServerError},
		{-1, wire.CDPProtocolError},
	}
	for _, tc := range tests {
		e := &wire.Error{Code: tc.code, Message: "boom"}
		got := wire.MapCDPError(e)
		assert.Equal(t, tc.want, got.Kind, "code %d", tc.code)
		assert.Equal(t, tc.code, got.Code)
	}
}
