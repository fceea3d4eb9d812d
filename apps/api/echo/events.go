package echoapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	wsMaxReadBytes = 512
)

// newUpgrader accepts same-host origins, and any origin in debug mode.
func newUpgrader(conf *core.Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || conf.Debug {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Hostname(), conf.Server.Host) || strings.EqualFold(u.Host, r.Host)
		},
	}
}

// events streams the snapshots of the user's capture session over a websocket until the session
// is closed or the client goes away.
func (api *attendanceApi) events(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	w, err := api.registry.Get(usr.ID)
	if err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		ctx.Logger().Warnf("attendance.events: upgrading connection: %v", err)
		return nil // the upgrader already replied
	}
	defer conn.Close()

	snaps, cancel := w.Subscribe()
	defer cancel()

	// client messages are discarded; reading is needed to process pongs and detect disconnection
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsMaxReadBytes)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := writeSnapshot(conn, w.Snapshot()); err != nil {
		return nil
	}
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				return nil
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap attendance.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(snap)
}
