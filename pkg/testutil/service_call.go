package testutil

import "time"

// ServiceCall is one call_service request received by MockHAServer
type ServiceCall struct {
	Timestamp   time.Time
	Domain      string
	Service     string
	ServiceData map[string]interface{}
}

// EntityID returns the entity the call targets, or ""
func (c ServiceCall) EntityID() string {
	id, _ := c.ServiceData["entity_id"].(string)
	return id
}

// FilterServiceCalls keeps the calls for domain.service
func FilterServiceCalls(calls []ServiceCall, domain, service string) []ServiceCall {
	var filtered []ServiceCall
	for _, call := range calls {
		if call.Domain == domain && call.Service == service {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindServiceCallWithEntityID returns the most recent domain.service call
// for entityID, or nil
func FindServiceCallWithEntityID(calls []ServiceCall, domain, service, entityID string) *ServiceCall {
	matches := FilterServiceCalls(calls, domain, service)
	for i := len(matches) - 1; i >= 0; i-- {
		if matches[i].EntityID() == entityID {
			return &matches[i]
		}
	}
	return nil
}

// TextWrites lists the values written to an input_text helper, oldest first
func TextWrites(calls []ServiceCall, entityID string) []string {
	var values []string
	for _, call := range FilterServiceCalls(calls, "input_text", "set_value") {
		if call.EntityID() != entityID {
			continue
		}
		if v, ok := call.ServiceData["value"].(string); ok {
			values = append(values, v)
		}
	}
	return values
}
