// Package invalidation defines the events that tell a running service a
// map-source descriptor changed in its store.
package invalidation

import (
	"fmt"
	"time"

	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
)

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

type Event struct {
	Version int    `json:"version"`
	Op      string `json:"op"`
	Source  string `json:"source"`
	// Seq orders events of one source. Zero means unsequenced and is always
	// applied.
	Seq uint64    `json:"seq,omitempty"`
	TS  time.Time `json:"ts,omitzero"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpUpsert, OpDelete:
	default:
		return fmt.Errorf("op must be upsert|delete")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if _, ok := mapsource.CleanID(e.Source); !ok {
		return fmt.Errorf("source %q is not a valid id", e.Source)
	}
	return nil
}

// ID is the normalized source id the event refers to.
func (e Event) ID() string {
	id, _ := mapsource.CleanID(e.Source)
	return id
}
