package domain

import (
	"encoding/json"
	"fmt"

	"github.com/gracevcs/grace-server/pkg/types"
)

// Event is implemented by every entity event variant.
type Event interface {
	EventType() string
}

// Command is implemented by every entity command variant.
type Command interface {
	CommandType() string
}

// wire is the serialized form of one tagged-union case. The case name
// travels as a stable string tag for interoperability.
type wire struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalEvent serializes an event with its variant name as the tag.
func MarshalEvent(e Event) (json.RawMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire{Type: e.EventType(), Data: data})
}

func unmarshalEvent[E Event](data []byte, registry map[string]func() E) (E, error) {
	var zero E
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return zero, err
	}
	ctor, ok := registry[w.Type]
	if !ok {
		return zero, fmt.Errorf("unknown event type: %s", w.Type)
	}
	e := ctor()
	if len(w.Data) > 0 {
		if err := json.Unmarshal(w.Data, e); err != nil {
			return zero, err
		}
	}
	return e, nil
}

// Record is one persisted log entry: the event plus the metadata of the
// command that produced it. The metadata's correlation id backs the
// per-entity idempotency guard.
type Record[E Event] struct {
	Event    E
	Metadata types.EventMetadata
}

type recordWire struct {
	Event    json.RawMessage     `json:"event"`
	Metadata types.EventMetadata `json:"metadata"`
}

// MarshalRecords serializes an ordered event list for the state store.
func MarshalRecords[E Event](records []Record[E]) ([]byte, error) {
	wires := make([]recordWire, 0, len(records))
	for _, r := range records {
		ev, err := MarshalEvent(r.Event)
		if err != nil {
			return nil, err
		}
		wires = append(wires, recordWire{Event: ev, Metadata: r.Metadata})
	}
	return json.Marshal(wires)
}

// UnmarshalRecords parses an ordered event list using the union's
// constructor registry.
func UnmarshalRecords[E Event](data []byte, registry map[string]func() E) ([]Record[E], error) {
	var wires []recordWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, err
	}
	records := make([]Record[E], 0, len(wires))
	for _, w := range wires {
		e, err := unmarshalEvent(w.Event, registry)
		if err != nil {
			return nil, err
		}
		records = append(records, Record[E]{Event: e, Metadata: w.Metadata})
	}
	return records, nil
}

// Per-union wire decoders for a single tagged event.

func UnmarshalOwnerEventWire(data []byte) (OwnerEvent, error) {
	return unmarshalEvent(data, OwnerEventRegistry)
}

func UnmarshalOrganizationEventWire(data []byte) (OrganizationEvent, error) {
	return unmarshalEvent(data, OrganizationEventRegistry)
}

func UnmarshalRepositoryEventWire(data []byte) (RepositoryEvent, error) {
	return unmarshalEvent(data, RepositoryEventRegistry)
}

func UnmarshalBranchEventWire(data []byte) (BranchEvent, error) {
	return unmarshalEvent(data, BranchEventRegistry)
}

func UnmarshalReferenceEventWire(data []byte) (ReferenceEvent, error) {
	return unmarshalEvent(data, ReferenceEventRegistry)
}

func UnmarshalDirectoryVersionEventWire(data []byte) (DirectoryVersionEvent, error) {
	return unmarshalEvent(data, DirectoryVersionEventRegistry)
}
