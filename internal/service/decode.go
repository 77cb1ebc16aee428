package service

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// DecodeCall builds a command from a service call received from outside
// the process (MQTT or HTTP).
//
// payload is the service data as a JSON object. An optional string
// "entity_id" member becomes the target. An empty payload is a call
// without data. Errors wrap ErrBadCall.
func DecodeCall(domain, service string, payload []byte) (Command, error) {
	if domain == "" || service == "" {
		return Command{}, fmt.Errorf("%w: domain and service are required", ErrBadCall)
	}

	cmd := Command{Domain: domain, Service: service}
	if len(payload) == 0 {
		return cmd, nil
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrBadCall, err)
	}

	if raw, ok := data["entity_id"]; ok {
		s, isString := raw.(string)
		if !isString {
			return Command{}, fmt.Errorf("%w: entity_id must be a string", ErrBadCall)
		}
		id, err := entity.ParseID(s)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %w", ErrBadCall, err)
		}
		cmd.Target = &id
		delete(data, "entity_id")
	}
	if len(data) > 0 {
		cmd.Data = data
	}
	return cmd, nil
}
