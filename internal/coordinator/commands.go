package coordinator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// Widget mutations delegate to the durable store; the store's change
// notification republishes the list before the command returns. Persistence
// failures are the only errors surfaced to the caller.

func (c *Coordinator) RemoveHostedWidget(id int) error {
	if err := c.deps.Widgets.RemoveHosted(id); err != nil {
		return fmt.Errorf("remove hosted widget: %w", err)
	}
	return nil
}

func (c *Coordinator) RemovePluginWidget(name string) error {
	if err := c.deps.Widgets.RemovePlugin(name); err != nil {
		return fmt.Errorf("remove plugin widget: %w", err)
	}
	return nil
}

func (c *Coordinator) ReorderWidgets(from, to int) error {
	if err := c.deps.Widgets.Reorder(from, to); err != nil {
		return fmt.Errorf("reorder widgets: %w", err)
	}
	return nil
}

func (c *Coordinator) ResizeWidget(d widgets.Descriptor, height int) error {
	if err := c.deps.Widgets.Resize(d, height); err != nil {
		return fmt.Errorf("resize widget: %w", err)
	}
	return nil
}

// RefreshWidgets re-reads the persisted widget list and republishes it.
func (c *Coordinator) RefreshWidgets() {
	c.publishWidgets()
}

func (c *Coordinator) publishWidgets() {
	list, err := c.deps.Widgets.List()
	if err != nil {
		c.logger.Error("Failed to read widget list", zap.Error(err))
		return
	}
	c.view.Widgets.Publish(list)
}

// SetMediaControlEnabled persists the setting; the media-control watcher
// derives and republishes the effective state.
func (c *Coordinator) SetMediaControlEnabled(enabled bool) error {
	return c.deps.Prefs.Update(func(p *prefs.Prefs) {
		p.MediaControl = enabled
	})
}

func (c *Coordinator) RequestSearch(query string) {
	c.deps.Search.Request(query)
}

func (c *Coordinator) CancelSearch() {
	c.deps.Search.Cancel()
}
