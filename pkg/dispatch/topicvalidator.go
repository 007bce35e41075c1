package dispatch

import "fmt"

// Message types a notification envelope may carry.
const (
	TypeNotification             = "Notification"
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
)

// TopicValidator is a RouteValidator that accepts messages for a fixed set of
// topics and message types.
type TopicValidator struct {
	topics map[string]struct{}
	types  map[string]struct{}
}

// NewTopicValidator builds a validator for the given topics. When no message
// types are supplied it accepts notifications and subscription confirmations.
func NewTopicValidator(topics []string, messageTypes ...string) *TopicValidator {
	if len(messageTypes) == 0 {
		messageTypes = []string{TypeNotification, TypeSubscriptionConfirmation}
	}
	v := &TopicValidator{
		topics: make(map[string]struct{}, len(topics)),
		types:  make(map[string]struct{}, len(messageTypes)),
	}
	for _, t := range topics {
		v.topics[t] = struct{}{}
	}
	for _, t := range messageTypes {
		v.types[t] = struct{}{}
	}
	return v
}

// Validate checks the routing metadata against the configured expectations.
func (v *TopicValidator) Validate(topic, messageType string) error {
	if _, ok := v.topics[topic]; !ok {
		return fmt.Errorf("received message for unexpected topic: %q", topic)
	}
	if _, ok := v.types[messageType]; !ok {
		return fmt.Errorf("received message with unexpected type: %q", messageType)
	}
	return nil
}
