package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chopmeet-service/internal/mocks"
)

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chopmeet", "chopmeet-service", "test")

	publisher.On("Publish", mock.Anything, "audit.chopmeet", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil)

	userID := "u1"
	emitter.Emit(context.Background(), Entry{
		Level:     "INFO",
		Text:      "Meal joined",
		RequestID: "req-1",
		UserID:    &userID,
		MealID:    "meal-1",
	})

	publisher.AssertExpectations(t)
	require.Len(t, publisher.Calls, 1)

	envelope, ok := publisher.Calls[0].Arguments.Get(2).(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "chopmeet-service", envelope.Service)
	assert.Equal(t, "test", envelope.Environment)
	assert.Equal(t, "req-1", envelope.RequestID)
	assert.Equal(t, "meal-1", envelope.MealID)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, "u1", *envelope.UserID)
	assert.Equal(t, "INFO", envelope.Payload.Level)
	assert.Equal(t, "Meal joined", envelope.Payload.Text)
	assert.NotEmpty(t, envelope.OccurredAt)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), Entry{Level: "INFO", Text: "noop"})

	emitter = NewAuditEmitter(nil, "audit.chopmeet", "chopmeet-service", "test")
	emitter.Emit(context.Background(), Entry{Level: "INFO", Text: "noop"})
}
