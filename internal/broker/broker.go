// Package broker feeds the renderer: it streams every view-state change
// over a WebSocket and accepts renderer commands on the same connection.
package broker

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kennethnym/SpotlightLauncher/internal/state"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

const (
	pingInterval = 15 * time.Second
	pongWait     = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Commands is the coordinator command surface the renderer can drive.
type Commands interface {
	RemoveHostedWidget(id int) error
	RemovePluginWidget(name string) error
	ReorderWidgets(from, to int) error
	ResizeWidget(d widgets.Descriptor, height int) error
	RefreshWeather()
	RefreshWidgets()
	RecheckMediaPermission()
	SetMediaControlEnabled(enabled bool) error
	RequestSearch(query string)
	CancelSearch()
}

// frame is one state update pushed to the renderer.
type frame struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Broker serves the view feed endpoint.
type Broker struct {
	addr   string
	view   *state.ViewState
	cmds   Commands
	logger *zap.Logger

	upgrader websocket.Upgrader
}

func New(addr string, view *state.ViewState, cmds Commands, logger *zap.Logger) *Broker {
	return &Broker{
		addr:   addr,
		view:   view,
		cmds:   cmds,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The renderer runs on the same host; the listen address is
			// loopback-only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (b *Broker) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/view", b.handleView)

	server := &http.Server{
		Addr:    b.addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	b.logger.Info("View broker listening", zap.String("addr", b.addr))
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (b *Broker) handleView(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("Failed to upgrade view connection", zap.Error(err))
		return
	}
	defer conn.Close()

	b.logger.Info("Renderer connected", zap.String("remote", conn.RemoteAddr().String()))
	b.serveConn(r.Context(), conn)
	b.logger.Info("Renderer disconnected", zap.String("remote", conn.RemoteAddr().String()))
}

func (b *Broker) serveConn(ctx context.Context, conn *websocket.Conn) {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan frame, 32)
	subscribeAll(ctx, b.view, updates)

	g.Go(func() error {
		return b.writePump(ctx, conn, updates)
	})
	g.Go(func() error {
		defer cancel()
		return b.readPump(conn)
	})

	if err := g.Wait(); err != nil {
		b.logger.Debug("View connection closed", zap.Error(err))
	}
}

func (b *Broker) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan frame) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return err
			}
		}
	}
}

func (b *Broker) readPump(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg commandMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		b.dispatch(msg)
	}
}

// subscribeAll forwards the current value and every change of each view
// field into out until ctx is cancelled.
func subscribeAll(ctx context.Context, view *state.ViewState, out chan<- frame) {
	go pipe(ctx, &view.Weather, "weatherInfo", out)
	go pipe(ctx, &view.ClockSize, "clockSize", out)
	go pipe(ctx, &view.Use24HrClock, "use24HrClock", out)
	go pipe(ctx, &view.Widgets, "addedWidgets", out)
	go pipe(ctx, &view.AddedHostWidget, "addedHostWidget", out)
	go pipe(ctx, &view.SearchOrder, "searchResultOrder", out)
	go pipe(ctx, &view.MediaControlEnabled, "isMediaControlEnabled", out)
	go pipe(ctx, &view.ActiveMediaSession, "activeMediaSession", out)
}

func pipe[T any](ctx context.Context, v *state.Value[T], field string, out chan<- frame) {
	ch, cancel := v.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case val, ok := <-ch:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame{Field: field, Value: val}:
			}
		}
	}
}
