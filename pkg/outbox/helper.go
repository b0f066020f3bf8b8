package outbox

import (
	"encoding/json"
	"fmt"
)

// NewEvent 构造一个待写入 outbox 的事件（辅助函数）
func NewEvent(aggregateType string, aggregateID *int64, routingKey string, payload interface{}) (*Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}, nil
}
