package entities

import "strings"

// DefaultBundleID identifies the empty module used before any bundle has
// been delivered to the device.
const DefaultBundleID = "nil"

// Topics builds the per-device topic names under a base path.
type Topics struct {
	Base     string
	DeviceID string
}

func (t Topics) prefix() string {
	return strings.TrimSuffix(t.Base, "/") + "/" + t.DeviceID
}

// Flows is where new bundles are delivered.
func (t Topics) Flows() string { return t.prefix() + "/toAgent/flows" }

// Command carries text commands for the running workflow.
func (t Topics) Command() string { return t.prefix() + "/command" }

// VirtualButton carries virtual button presses.
func (t Topics) VirtualButton() string { return t.prefix() + "/toAgent/virtualButton" }

// ToAgent is the wildcard filter covering every toAgent topic.
func (t Topics) ToAgent() string { return t.prefix() + "/toAgent/#" }

// Hello is where the agent announces itself.
func (t Topics) Hello() string { return t.prefix() + "/fromAgent/hello" }

// TopicMatches reports whether topic matches an MQTT-style filter.
// "+" matches one level, a trailing "#" matches the remaining levels.
func TopicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, f := range fl {
		if f == "#" {
			return i == len(fl)-1
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
