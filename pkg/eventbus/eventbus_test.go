package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Success(t *testing.T) {
	data := map[string]string{"session_id": "abc"}

	event, err := NewEvent(SubjectQuoteComputed, "quote-api", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectQuoteComputed, event.Type)
	assert.Equal(t, "quote-api", event.Source)
	assert.Equal(t, time.UTC, event.Timestamp.Location())

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "abc", decoded["session_id"])
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("test.event", "test-source", make(chan int))
	assert.Error(t, err)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a, err := NewEvent("x", "y", nil)
	require.NoError(t, err)
	b, err := NewEvent("x", "y", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestQuoteComputedData_Decode(t *testing.T) {
	computedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	data := QuoteComputedData{
		SessionID:        "sess-1",
		PickupQuery:      "Penn Station",
		PickupLatitude:   40.7505,
		PickupLongitude:  -73.9934,
		DropoffLatitude:  40.6413,
		DropoffLongitude: -73.7781,
		DistanceKm:       24.1,
		DurationMin:      38.5,
		Fare:             52.39,
		Currency:         "USD",
		PassengerCount:   2,
		PickupTime:       "2026-03-01 09:30:00",
		ComputedAt:       computedAt,
	}

	event, err := NewEvent(SubjectQuoteComputed, "quote-api", data)
	require.NoError(t, err)

	var decoded QuoteComputedData
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, data, decoded)
	assert.NotContains(t, string(event.Data), "dropoff_query")
}

func TestQuoteFailedData_Decode(t *testing.T) {
	event, err := NewEvent(SubjectQuoteFailed, "quote-api", QuoteFailedData{
		SessionID: "sess-1",
		Stage:     "routing",
		Reason:    "no_path_found",
		Message:   "no drivable path",
	})
	require.NoError(t, err)

	var decoded QuoteFailedData
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "no_path_found", decoded.Reason)
}

func TestEvent_DecodeInvalid(t *testing.T) {
	event := &Event{Type: SubjectQuoteFailed, Data: json.RawMessage(`{`)}
	var decoded QuoteFailedData
	assert.Error(t, event.Decode(&decoded))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "QUOTES", cfg.StreamName)
}

func TestHandlerFunc_ReturnsError(t *testing.T) {
	want := errors.New("handler failed")
	var h HandlerFunc = func(_ context.Context, _ *Event) error { return want }
	assert.ErrorIs(t, h(context.Background(), &Event{}), want)
}

func TestBus_DisconnectedHealth(t *testing.T) {
	bus := &Bus{}
	assert.False(t, bus.Connected())
	assert.Error(t, bus.HealthCheck(context.Background()))
	assert.NotPanics(t, bus.Close)
}
