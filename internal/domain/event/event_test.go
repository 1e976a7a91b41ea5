package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range []Type{
		TypeSessionStarted, TypeCommandQueued, TypeConfirmationRequested,
		TypeChangesCancelled, TypeChangesCommitted, TypeSessionReloaded,
		TypeSessionFinalized, TypeSessionExpired, TypeQuoteStatusChanged,
	} {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("instance.created").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeChangesCommitted, "q-1", "s-1", map[string]interface{}{KeyVersion: 4})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, TypeChangesCommitted, evt.Type)
	assert.Equal(t, "q-1", evt.QuoteID)
	assert.Equal(t, "s-1", evt.SessionID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.WithinDuration(t, time.Now(), evt.Timestamp, time.Second)
	assert.Equal(t, 4, evt.GetPayloadInt(KeyVersion))
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeSessionStarted, "q-1", "s-1", nil, "s-1")
	assert.Equal(t, "s-1", evt.CorrelationID)
	assert.NotNil(t, evt.Payload)
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeCommandQueued, "q-1", "s-1", map[string]interface{}{"a": "x"})
	modified := original.WithPayload("b", "y")

	_, exists := original.Payload["b"]
	assert.False(t, exists, "original must not change")
	assert.Equal(t, "x", modified.GetPayloadString("a"))
	assert.Equal(t, "y", modified.GetPayloadString("b"))
	assert.Equal(t, original.ID, modified.ID)
	assert.Equal(t, original.QuoteID, modified.QuoteID)
}

func TestEvent_PayloadGetters(t *testing.T) {
	evt := NewEvent(TypeChangesCommitted, "q-1", "", map[string]interface{}{
		"str":   "ok",
		"int":   3,
		"int64": int64(7),
		"float": 150.25,
		"bool":  true,
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"string", evt.GetPayloadString("str"), "ok"},
		{"string from int", evt.GetPayloadString("int"), ""},
		{"int", evt.GetPayloadInt("int"), 3},
		{"int from int64", evt.GetPayloadInt("int64"), 7},
		{"int from float", evt.GetPayloadInt("float"), 150},
		{"int missing", evt.GetPayloadInt("nope"), 0},
		{"float", evt.GetPayloadFloat("float"), 150.25},
		{"float from int", evt.GetPayloadFloat("int"), 3.0},
		{"float from string", evt.GetPayloadFloat("str"), 0.0},
		{"bool", evt.GetPayloadBool("bool"), true},
		{"bool from string", evt.GetPayloadBool("str"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
