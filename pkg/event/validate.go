package event

import (
	"fmt"
	"strings"
)

// Validate is the shared contract gate both producers and consumers run
// before any business logic. A violation is a hard rejection: the caller
// must propagate it so the transport's retry/dead-letter policy can act.
func Validate(e Event, expected Type, topic string) error {
	if e == nil {
		return fmt.Errorf("event payload is required for topic %s", topic)
	}
	env := e.Meta()
	if strings.TrimSpace(env.EventID) == "" {
		return fmt.Errorf("eventId is required for topic %s", topic)
	}
	if env.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required for topic %s", topic)
	}
	if env.EventType != expected {
		return fmt.Errorf("unexpected event type for topic %s: expected=%s, actual=%s",
			topic, expected, env.EventType)
	}
	if env.ContractVersion != SupportedContractVersion {
		return fmt.Errorf("unsupported contractVersion for topic %s: %d (supported: %d)",
			topic, env.ContractVersion, SupportedContractVersion)
	}
	return nil
}
