package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20
	sendBuffer = 256
)

var (
	errNoPrincipal      = errors.New("token carries no username")
	errNotAuthenticated = errors.New("not authenticated")
)

// client is one websocket session. readPump runs on the handler goroutine;
// writePump and one forwarder per subscription run on their own.
type client struct {
	id   string
	gw   *Gateway
	conn *websocket.Conn
	ctx  context.Context
	log  *logger.Entry

	send chan []byte
	done chan struct{}

	mu    sync.Mutex
	user  string
	subs  map[string]*relay.Subscription
	added map[int64]map[string]struct{}
}

func newClient(ctx context.Context, gw *Gateway, conn *websocket.Conn, id, user string) *client {
	return &client{
		id:    id,
		gw:    gw,
		conn:  conn,
		ctx:   ctx,
		log:   logger.WithFields(logger.Fields{"conn": id}),
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		user:  user,
		subs:  make(map[string]*relay.Subscription),
		added: make(map[int64]map[string]struct{}),
	}
}

func (c *client) username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// readPump reads frames until the socket fails or the client disconnects.
func (c *client) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnf("read error: %v", err)
			}
			return
		}

		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("invalid frame")
			continue
		}
		metrics.GatewayFrames.WithLabelValues(frameLabel(f.Command)).Inc()

		if !c.handle(f) {
			return
		}
	}
}

// handle processes one frame and reports whether the session continues.
func (c *client) handle(f ClientFrame) bool {
	var err error
	switch f.Command {
	case CmdConnect:
		err = c.connect(f)
		if err != nil {
			c.sendError(err.Error())
			return false
		}
	case CmdSubscribe:
		err = c.subscribe(f)
	case CmdUnsubscribe:
		err = c.unsubscribe(f)
	case CmdSend:
		err = c.dispatch(f)
	case CmdDisconnect:
		c.sendFrame(ServerFrame{Command: CmdReceipt, ReceiptID: f.Receipt})
		return false
	default:
		err = errors.New("unknown command: " + f.Command)
	}
	if err != nil {
		c.sendError(err.Error())
		return true
	}
	if f.Receipt != "" {
		c.sendFrame(ServerFrame{Command: CmdReceipt, ReceiptID: f.Receipt})
	}
	return true
}

func (c *client) connect(f ClientFrame) error {
	if f.Token != "" {
		name, err := c.gw.authenticate(c.ctx, f.Token)
		if err != nil {
			return errors.New("authentication failed")
		}
		c.mu.Lock()
		c.user = name
		c.mu.Unlock()
	}
	user := c.username()
	if user == "" {
		return errNotAuthenticated
	}
	c.log.WithField("user", user).Debugf("connected")
	c.sendFrame(ServerFrame{Command: CmdConnected, User: user})
	return nil
}

func (c *client) subscribe(f ClientFrame) error {
	if c.username() == "" {
		return errNotAuthenticated
	}
	if f.ID == "" {
		return errors.New("subscription id required")
	}
	if !strings.HasPrefix(f.Topic, topicPrefix) {
		return errors.New("cannot subscribe to " + f.Topic)
	}
	c.mu.Lock()
	if _, dup := c.subs[f.ID]; dup {
		c.mu.Unlock()
		return errors.New("duplicate subscription id " + f.ID)
	}
	sub := c.gw.broker.Subscribe(f.Topic)
	c.subs[f.ID] = sub
	c.mu.Unlock()

	go c.forward(f.ID, sub)
	return nil
}

// forward relays one subscription's messages into the send buffer until the
// subscription is closed.
func (c *client) forward(id string, sub *relay.Subscription) {
	for m := range sub.C() {
		c.sendFrame(ServerFrame{Command: CmdMessage, Subscription: id, Topic: m.Topic, Body: m.Payload})
	}
}

func (c *client) unsubscribe(f ClientFrame) error {
	c.mu.Lock()
	sub, ok := c.subs[f.ID]
	delete(c.subs, f.ID)
	c.mu.Unlock()
	if !ok {
		return errors.New("unknown subscription " + f.ID)
	}
	sub.Close()
	return nil
}

func (c *client) dispatch(f ClientFrame) error {
	if c.username() == "" {
		return errNotAuthenticated
	}
	switch {
	case strings.HasPrefix(f.Destination, DestUpdateDocument):
		id, err := document.ParseID(strings.TrimPrefix(f.Destination, DestUpdateDocument))
		if err != nil {
			return errors.New("invalid document id")
		}
		var upd document.Update
		if err := json.Unmarshal(f.Body, &upd); err != nil {
			return errors.New("invalid update body")
		}
		upd.ID = id
		if _, err := c.gw.docs.UpdateContent(c.ctx, upd); err != nil {
			c.log.Warnf("update document %d: %v", id, err)
			return errors.New("update failed: " + err.Error())
		}
		return nil

	case strings.HasPrefix(f.Destination, DestActiveUsers):
		id, err := document.ParseID(strings.TrimPrefix(f.Destination, DestActiveUsers))
		if err != nil {
			return errors.New("invalid document id")
		}
		var sig ActiveUserSignal
		if err := json.Unmarshal(f.Body, &sig); err != nil {
			return errors.New("invalid presence body")
		}
		return c.signal(id, sig)

	case f.Destination == DestRenameDocument:
		var req document.RenameRequest
		if err := json.Unmarshal(f.Body, &req); err != nil {
			return errors.New("invalid rename body")
		}
		if err := c.gw.docs.Rename(c.ctx, req); err != nil {
			c.log.Warnf("rename document %d: %v", req.ID, err)
			return errors.New("rename failed: " + err.Error())
		}
		return nil
	}
	return errors.New("unknown destination " + f.Destination)
}

func (c *client) signal(docID int64, sig ActiveUserSignal) error {
	u, err := c.gw.users.GetByID(c.ctx, sig.UserID)
	if err != nil {
		return errors.New("unknown user")
	}
	switch sig.Action {
	case ActionConnect:
		if _, err := c.gw.presence.Add(c.ctx, docID, u.Username); err != nil {
			return err
		}
		c.mu.Lock()
		if c.added[docID] == nil {
			c.added[docID] = make(map[string]struct{})
		}
		c.added[docID][u.Username] = struct{}{}
		c.mu.Unlock()
	case ActionDisconnect:
		if _, err := c.gw.presence.Remove(c.ctx, docID, u.Username); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.added[docID], u.Username)
		c.mu.Unlock()
	default:
		return errors.New("unknown action " + sig.Action)
	}
	return nil
}

// shutdown closes subscriptions, optionally releases presence and stops the writer.
func (c *client) shutdown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]*relay.Subscription{}
	added := c.added
	c.added = map[int64]map[string]struct{}{}
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	if c.gw.opts.ReleaseOnClose {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for docID, names := range added {
			for name := range names {
				if _, err := c.gw.presence.Remove(ctx, docID, name); err != nil {
					c.log.Warnf("release presence %s on %d: %v", name, docID, err)
				}
			}
		}
		cancel()
	}
	close(c.done)
}

// writePump writes frames from the send buffer and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// flush what is already queued, then say goodbye
			for {
				select {
				case data := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *client) sendFrame(f ServerFrame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f.Encode():
	default:
		// client too slow, drop frame
		c.log.Warnf("send buffer full, dropping %s frame", f.Command)
	}
}

func (c *client) sendError(message string) {
	c.sendFrame(ServerFrame{Command: CmdError, Message: message})
}

// frameLabel keeps the metric label set bounded.
func frameLabel(cmd string) string {
	switch cmd {
	case CmdConnect, CmdSubscribe, CmdUnsubscribe, CmdSend, CmdDisconnect:
		return cmd
	}
	return "OTHER"
}
