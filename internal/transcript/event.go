package transcript

import "encoding/json"

// Wire values for the event "reporter" field.
const (
	reporterUser      = "user"
	reporterAssistant = "output_message"
)

// Event is one inbound message from the chat transport, exactly as it
// appears on the wire.
type Event struct {
	Type     string   `json:"type"`
	Reporter string   `json:"reporter"`
	Message  string   `json:"message"`
	Links    []string `json:"links"`
}

// DecodeEvent parses one wire frame.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// kind maps the wire type discriminator to the closed Kind set.
// Unknown values fall through to KindPartial: an unclassifiable event
// takes the merge-by-concatenation branch rather than being rejected
// (permissive by default).
func (e Event) kind() Kind {
	switch Kind(e.Type) {
	case KindQuestion, KindProcessing, KindPartial, KindFull, KindAnswer:
		return Kind(e.Type)
	default:
		return KindPartial
	}
}

// origin maps the wire reporter to the closed Origin set. Anything that
// is not the user is assistant-sourced.
func (e Event) origin() Origin {
	if e.Reporter == reporterUser {
		return OriginUser
	}
	return OriginAssistant
}

// message converts the wire event into a transcript entry.
func (e Event) message() Message {
	return Message{
		Kind:       e.kind(),
		Origin:     e.origin(),
		Text:       e.Message,
		References: e.Links,
	}
}
