package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tourney/internal/middleware"
	"github.com/jason-s-yu/tourney/internal/push"
)

// Subprotocol is the WebSocket subprotocol observers must request.
const Subprotocol = "tourney"

// pushSocket streams the event to an observer: a dump of the current state,
// then every update. Anything the observer sends is ignored.
func (a *API) pushSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{Subprotocols: []string{Subprotocol}}
	if len(a.originHosts) > 0 {
		opts.OriginPatterns = a.originHosts
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		a.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the tourney subprotocol")
		return
	}

	sub := a.store.Subscribe()
	defer sub.Close()
	middleware.LogWebSocketConnect(a.logger, r, sub.ID.String())

	ctx := c.CloseRead(r.Context())
	err = writePump(ctx, c, sub, a.logger)
	middleware.LogWebSocketDisconnect(a.logger, r, sub.ID.String(), err)
}

// writePump forwards updates until the observer leaves or falls behind, and
// pings the observer while the event is quiet.
func writePump(ctx context.Context, c *websocket.Conn, sub *push.Subscription, logger *logrus.Logger) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				c.Close(SubscriberLagError, "subscription closed")
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				logger.Warnf("push: failed to write to subscriber %s: %v", sub.ID, err)
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
