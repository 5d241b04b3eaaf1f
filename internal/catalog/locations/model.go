package locations

import (
	"time"
)

// Location is a named stock-holding place. Per-location quantities are
// always derived from movements, never stored here.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
