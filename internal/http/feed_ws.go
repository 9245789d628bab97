package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	"cashstash/internal/feed"
	applog "cashstash/internal/log"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
	feedReadLimit  = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// feedCommand is what clients may send on an open feed.
type feedCommand struct {
	Type string `json:"type"`
}

// feedConn is one websocket client. Its Mount holds the single live
// subscription; a "refresh" command replaces it.
type feedConn struct {
	ws     *websocket.Conn
	out    chan FeedMessage
	mount  feed.Mount
	cancel context.CancelFunc
	once   sync.Once
}

func (c *feedConn) close() {
	c.once.Do(func() {
		c.cancel()
		c.mount.Close()
		_ = c.ws.Close()
	})
}

// send queues msg unless the connection is gone.
func (c *feedConn) send(ctx context.Context, msg FeedMessage) {
	select {
	case c.out <- msg:
	case <-ctx.Done():
	}
}

func (s *Server) track(c *feedConn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrack(c *feedConn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

func (s *Server) closeFeeds() {
	s.connsMu.Lock()
	conns := make([]*feedConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

// handleFeed upgrades to a websocket that streams a fresh snapshot on every
// change to the caller's transactions. The token comes from the
// Authorization header or, for browsers, the token query parameter.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, msgUnauthorized, auth.ErrNoSession)
		return
	}
	sess, err := s.deps.Identity.Authenticate(r.Context(), token)
	if err != nil {
		fail(w, r, msgFeed, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Websocket upgrade failed", applog.FieldError, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := &feedConn{ws: ws, out: make(chan FeedMessage, 16), cancel: cancel}
	s.track(conn)
	defer s.untrack(conn)
	defer conn.close()

	logger := applog.FromContext(ctx).With(applog.FieldUserID, sess.UserID)
	logger.InfoContext(ctx, "Feed connected", applog.FieldOperation, applog.OpSubscribe)

	if err := s.subscribeFeed(ctx, conn, sess, logger); err != nil {
		conn.send(ctx, FeedMessage{Type: "error", Error: msgFeed})
	}

	go s.writeFeed(ctx, conn, logger)
	s.readFeed(ctx, conn, sess, logger)
	logger.InfoContext(ctx, "Feed disconnected")
}

func (s *Server) subscribeFeed(ctx context.Context, conn *feedConn, sess *auth.Session, logger *applog.Logger) error {
	sub, err := s.deps.Feed.Subscribe(ctx, sess, func(snap core.Snapshot) {
		conn.send(ctx, newSnapshotMessage(snap))
	})
	if err != nil {
		logger.ErrorContext(ctx, "Feed subscribe failed", applog.FieldError, err)
		return err
	}
	conn.mount.Attach(sub)

	go func() {
		<-sub.Done()
		if err := sub.Err(); err != nil && conn.mount.Active() == sub {
			conn.send(ctx, FeedMessage{Type: "error", Error: msgFeed})
		}
	}()
	return nil
}

// readFeed handles client commands and pongs until the socket fails.
func (s *Server) readFeed(ctx context.Context, conn *feedConn, sess *auth.Session, logger *applog.Logger) {
	conn.ws.SetReadLimit(feedReadLimit)
	_ = conn.ws.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		var cmd feedCommand
		if err := conn.ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.DebugContext(ctx, "Feed read failed", applog.FieldError, err)
			}
			return
		}
		switch cmd.Type {
		case "refresh":
			if err := s.subscribeFeed(ctx, conn, sess, logger); err != nil {
				conn.send(ctx, FeedMessage{Type: "error", Error: msgFeed})
			}
		case "ping":
			conn.send(ctx, FeedMessage{Type: "pong"})
		default:
			conn.send(ctx, FeedMessage{Type: "error", Error: "Unknown command."})
		}
	}
}

// writeFeed is the only writer on the socket.
func (s *Server) writeFeed(ctx context.Context, conn *feedConn, logger *applog.Logger) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	defer conn.close()

	for {
		select {
		case <-ctx.Done():
			_ = conn.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-conn.out:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.ws.WriteJSON(msg); err != nil {
				logger.DebugContext(ctx, "Feed write failed", applog.FieldError, err)
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
