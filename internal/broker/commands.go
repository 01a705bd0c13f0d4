package broker

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// Command enumerates the renderer command set.
type Command string

const (
	CmdRemoveHostedWidget     Command = "removeHostedWidget"
	CmdRemovePluginWidget     Command = "removePluginWidget"
	CmdReorderWidgets         Command = "reorderWidgets"
	CmdResizeWidget           Command = "resizeWidget"
	CmdRefreshWeather         Command = "refreshWeather"
	CmdRefreshWidgets         Command = "refreshWidgets"
	CmdRecheckMediaPermission Command = "recheckMediaPermission"
	CmdSetMediaControl        Command = "setMediaControl"
	CmdRequestSearch          Command = "requestSearch"
	CmdCancelSearch           Command = "cancelSearch"
)

type commandMessage struct {
	Command Command         `json:"command"`
	Request json.RawMessage `json:"request"`
}

type removeHostedWidgetRequest struct {
	ID int `json:"id"`
}

type removePluginWidgetRequest struct {
	Name string `json:"name"`
}

type reorderWidgetsRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type resizeWidgetRequest struct {
	Widget widgets.Descriptor `json:"widget"`
	Height int                `json:"height"`
}

type setMediaControlRequest struct {
	Enabled bool `json:"enabled"`
}

type requestSearchRequest struct {
	Query string `json:"query"`
}

// dispatch decodes and executes one renderer command. Commands are
// fire-and-forget from the renderer's perspective; persistence failures are
// logged here, not echoed back.
func (b *Broker) dispatch(msg commandMessage) {
	var err error

	switch msg.Command {
	case CmdRemoveHostedWidget:
		var req removeHostedWidgetRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			err = b.cmds.RemoveHostedWidget(req.ID)
		}

	case CmdRemovePluginWidget:
		var req removePluginWidgetRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			err = b.cmds.RemovePluginWidget(req.Name)
		}

	case CmdReorderWidgets:
		var req reorderWidgetsRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			err = b.cmds.ReorderWidgets(req.From, req.To)
		}

	case CmdResizeWidget:
		var req resizeWidgetRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			err = b.cmds.ResizeWidget(req.Widget, req.Height)
		}

	case CmdRefreshWeather:
		b.cmds.RefreshWeather()

	case CmdRefreshWidgets:
		b.cmds.RefreshWidgets()

	case CmdRecheckMediaPermission:
		b.cmds.RecheckMediaPermission()

	case CmdSetMediaControl:
		var req setMediaControlRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			err = b.cmds.SetMediaControlEnabled(req.Enabled)
		}

	case CmdRequestSearch:
		var req requestSearchRequest
		if err = json.Unmarshal(msg.Request, &req); err == nil {
			b.cmds.RequestSearch(req.Query)
		}

	case CmdCancelSearch:
		b.cmds.CancelSearch()

	default:
		b.logger.Error("Unknown command", zap.String("command", string(msg.Command)))
		return
	}

	if err != nil {
		b.logger.Error("Command failed",
			zap.String("command", string(msg.Command)),
			zap.Error(err))
	}
}
