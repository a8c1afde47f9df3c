package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierMutatedDataRoundTrip(t *testing.T) {
	data := SupplierMutatedData{SupplierID: "sup-1"}

	jsonData, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "sup-1")

	var unmarshaled SupplierMutatedData
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))
	assert.Equal(t, data.SupplierID, unmarshaled.SupplierID)
}

func TestEventWithDataRoundTrip(t *testing.T) {
	original := &EventWithData{
		Type:      AlertCreated,
		Component: "alerting_stage",
		Data:      &AlertCreatedData{AlertID: "a-1", SeverityBand: "high", Score: 7.5},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, AlertCreated, decoded.Type)
	assert.Equal(t, "alerting_stage", decoded.Component)

	data, ok := decoded.Data.(*AlertCreatedData)
	require.True(t, ok)
	assert.Equal(t, "a-1", data.AlertID)
	assert.Equal(t, "high", data.SeverityBand)
	assert.Equal(t, 7.5, data.Score)
}

func TestEventWithDataUnknownTypeFallsBackToGeneric(t *testing.T) {
	raw := []byte(`{"type":"legacy_event","timestamp":"2026-01-01T00:00:00Z","component":"x","data":{"foo":"bar"}}`)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	generic, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, "bar", generic.Data["foo"])
}

func TestBusEmitDispatchesToSubscribers(t *testing.T) {
	bus := NewBus(testLogger())

	var received *EventWithData
	bus.Subscribe(SupplierMutated, func(e EventWithData) {
		received = &e
	})

	bus.Emit("test", &SupplierMutatedData{SupplierID: "sup-2"})

	require.NotNil(t, received)
	data, ok := received.Data.(*SupplierMutatedData)
	require.True(t, ok)
	assert.Equal(t, "sup-2", data.SupplierID)
}

func TestBusEmitIgnoresUnrelatedSubscribers(t *testing.T) {
	bus := NewBus(testLogger())

	called := false
	bus.Subscribe(AlertCreated, func(e EventWithData) { called = true })
	bus.Emit("test", &SupplierMutatedData{SupplierID: "sup-3"})

	assert.False(t, called)
}
