package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "grayhub"

// Topics builds the topic names the mirror publishes under a single prefix.
//
//	topics := mqtt.NewTopics("grayhub")
//	topics.State("switch.kitchen") // "grayhub/state/switch.kitchen"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder for prefix. Leading and trailing slashes
// are trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalised prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// State returns the retained state topic for an entity.
//
// Example: grayhub/state/media_player.living_room
func (t Topics) State(entityID string) string {
	return t.prefix + "/state/" + entityID
}

// Event returns the topic for a named hub event.
//
// Example: grayhub/event/call_service
func (t Topics) Event(eventType string) string {
	return t.prefix + "/event/" + eventType
}

// Status returns the retained online/offline status topic (also the LWT).
//
// Example: grayhub/status
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// Command returns the inbound topic consumers publish service calls on.
//
// Example: grayhub/command/light/turn_on
func (t Topics) Command(domain, service string) string {
	return t.prefix + "/command/" + domain + "/" + service
}

// ParseCommand splits an inbound command topic into domain and service.
func (t Topics) ParseCommand(topic string) (domain, service string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/command/")
	if !found {
		return "", "", false
	}
	domain, service, found = strings.Cut(rest, "/")
	if !found || domain == "" || service == "" || strings.Contains(service, "/") {
		return "", "", false
	}
	return domain, service, true
}

// AllCommands returns a pattern matching every inbound command topic.
//
// Pattern: grayhub/command/+/+
func (t Topics) AllCommands() string {
	return t.prefix + "/command/+/+"
}

// AllStates returns a pattern matching every mirrored entity state.
//
// Pattern: grayhub/state/+
func (t Topics) AllStates() string {
	return t.prefix + "/state/+"
}

// AllEvents returns a pattern matching every mirrored named event.
//
// Pattern: grayhub/event/+
func (t Topics) AllEvents() string {
	return t.prefix + "/event/+"
}

// validPublishTopic reports whether topic can be published to.
// Wildcards are only legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
