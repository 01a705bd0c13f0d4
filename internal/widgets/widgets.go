// Package widgets holds the home-screen widget model and its durable store.
package widgets

import "fmt"

// Kind distinguishes the two widget variants the home screen can place.
type Kind string

const (
	// KindHosted is a widget rendered by an external host process,
	// referenced by its system widget identifier.
	KindHosted Kind = "hosted"

	// KindPlugin is a widget contributed by an installed launcher
	// extension, referenced by the extension name.
	KindPlugin Kind = "plugin"
)

// Descriptor identifies one user-placed widget. Order is significant and
// user-reorderable; Height is the display height in grid rows.
type Descriptor struct {
	Kind   Kind   `json:"kind"`
	HostID int    `json:"hostId,omitempty"`
	Plugin string `json:"plugin,omitempty"`
	Height int    `json:"height"`
	Order  int    `json:"order"`
}

// Identity returns the stable per-widget identity used for removal and
// resize lookups.
func (d Descriptor) Identity() string {
	if d.Kind == KindHosted {
		return fmt.Sprintf("hosted:%d", d.HostID)
	}
	return "plugin:" + d.Plugin
}

// HostAddition reports the most recently added hosted widget together with
// its provider metadata. It is a one-shot notification, not a list.
type HostAddition struct {
	Widget   Descriptor `json:"widget"`
	Provider string     `json:"provider"`
}

// Store is the durable widget list. Every mutation is persisted before the
// call returns. Change handlers fire after each durable mutation.
type Store interface {
	List() ([]Descriptor, error)
	RemoveHosted(id int) error
	RemovePlugin(name string) error
	Reorder(from, to int) error
	Resize(d Descriptor, height int) error
	OnChange(handler func())
}
