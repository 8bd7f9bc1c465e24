package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() *StockUpdated {
	return &StockUpdated{
		Envelope:         NewEnvelope(TypeStockUpdated),
		SKU:              "WIDGET-001",
		PreviousQuantity: 10,
		NewQuantity:      5,
	}
}

func TestValidateAcceptsWellFormedEvent(t *testing.T) {
	assert.NoError(t, Validate(validEvent(), TypeStockUpdated, TopicStockUpdated))
}

func TestValidateRejectsNilEvent(t *testing.T) {
	err := Validate(nil, TypeStockUpdated, TopicStockUpdated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload is required")
}

func TestValidateRejectsBlankEventID(t *testing.T) {
	evt := validEvent()
	evt.EventID = "   "
	err := Validate(evt, TypeStockUpdated, TopicStockUpdated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eventId is required")
}

func TestValidateRejectsZeroTimestamp(t *testing.T) {
	evt := validEvent()
	evt.Timestamp = time.Time{}
	err := Validate(evt, TypeStockUpdated, TopicStockUpdated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp is required")
}

func TestValidateRejectsTypeMismatch(t *testing.T) {
	evt := validEvent()
	evt.EventType = TypeProductCreated
	err := Validate(evt, TypeStockUpdated, TopicStockUpdated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}

func TestValidateRejectsUnsupportedContractVersion(t *testing.T) {
	evt := validEvent()
	evt.ContractVersion = 2
	err := Validate(evt, TypeStockUpdated, TopicStockUpdated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported contractVersion")
}

func TestNewEnvelopePopulatesAllFields(t *testing.T) {
	env := NewEnvelope(TypeProductCreated)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Equal(t, SupportedContractVersion, env.ContractVersion)
	assert.Equal(t, TypeProductCreated, env.EventType)

	// IDs are unique per envelope.
	assert.NotEqual(t, env.EventID, NewEnvelope(TypeProductCreated).EventID)
}
