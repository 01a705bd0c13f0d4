package coordinator

import (
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/mediasess"
)

// applyMediaState recomputes the derived media-control state. The published
// flag is always settingEnabled AND listenerPermissionGranted, never the raw
// setting alone.
func (c *Coordinator) applyMediaState(settingEnabled bool) {
	granted := c.deps.Perms.MediaListenerGranted()
	active := settingEnabled && granted
	c.view.MediaControlEnabled.Publish(active)

	if !active {
		c.deps.Media.RemoveListener()
		c.view.ActiveMediaSession.Publish(nil)
		return
	}

	if err := c.deps.Media.AddListener(c.handleSessionsChanged); err != nil {
		c.logger.Warn("Failed to register media session listener", zap.Error(err))
	}
	c.handleSessionsChanged(c.deps.Media.ActiveSessions())
}

// handleSessionsChanged publishes the first session of the reported set, or
// nil when the set is empty.
func (c *Coordinator) handleSessionsChanged(sessions []mediasess.Session) {
	if len(sessions) == 0 {
		c.view.ActiveMediaSession.Publish(nil)
		return
	}
	first := sessions[0]
	c.view.ActiveMediaSession.Publish(&first)
}

// RecheckMediaPermission re-evaluates listener permission on demand.
// Permissions can change outside the settings flow, e.g. from system
// settings, so the same enable/disable transition is reapplied.
func (c *Coordinator) RecheckMediaPermission() {
	c.applyMediaState(c.deps.Prefs.Get().MediaControl)
}
