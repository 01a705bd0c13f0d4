// Package mediasess tracks the set of active media-playback sessions
// system-wide and notifies the coordinator when it changes.
package mediasess

// Session is a handle to one active media-playback session.
type Session struct {
	// Owner is the unique connection name owning the session.
	Owner string `json:"owner"`
	// Identity is the well-known session name, e.g.
	// "org.mpris.MediaPlayer2.spotify".
	Identity string `json:"identity"`
}

// Registry exposes the active sessions and a change listener. Listener
// permission can be revoked outside the settings flow, so Granted must be
// re-evaluated on demand. RemoveListener when none is registered is
// tolerated.
type Registry interface {
	Granted() bool
	ActiveSessions() []Session
	AddListener(handler func(sessions []Session)) error
	RemoveListener()
}
