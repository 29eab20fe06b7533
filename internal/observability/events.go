package observability

// EventEnvelope wraps every event published to the topic exchange.
// Service and OccurredAt are stamped by PublishEvent.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	Service    string      `json:"service,omitempty"`
	OccurredAt string      `json:"occurred_at,omitempty"`
	Payload    interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
