package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/protocol"
)

// sendBuffer is the per-client frame queue. At the default broadcast rate
// this absorbs roughly three seconds of state updates before the client
// counts as slow.
const sendBuffer = 32

// client is one websocket session. Frames flow out through the buffered
// send channel; the reader feeds input and dialog requests back in.
type client struct {
	srv  *Server
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once

	// dialogBusy limits each client to one in-flight dialog generation.
	dialogBusy atomic.Bool
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	c := &client{
		srv:  s,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	s.register(c)
	defer s.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.writeLoop(ctx)

	c.sendWelcome()
	c.readLoop(ctx)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// shutdown tears the session down. Called by the server with its client
// lock held, so it must not block.
func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(websocket.StatusGoingAway, "")
	})
}

// enqueue offers a frame to the client without blocking. It reports false
// when the buffer is full, which marks the client as slow.
func (c *client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case frame := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handleFrame(ctx, data)
	}
}

func (c *client) handleFrame(ctx context.Context, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		metricBadFrames.Inc()
		c.sendError(protocol.CodeBadMessage, "malformed frame")
		return
	}

	switch env.Type {
	case protocol.TypeInput:
		in, err := protocol.DecodePayload[protocol.Input](env)
		if err != nil || in.Key == "" {
			metricBadFrames.Inc()
			c.sendError(protocol.CodeBadMessage, "bad input payload")
			return
		}
		c.srv.eng.PushInput(game.KeyEvent{Key: in.Key, Down: in.Down})

	case protocol.TypeDialogRequest:
		req, err := protocol.DecodePayload[protocol.DialogRequest](env)
		if err != nil || req.NPCID == "" {
			metricBadFrames.Inc()
			c.sendError(protocol.CodeBadMessage, "bad dialog request")
			return
		}
		if !c.dialogBusy.CompareAndSwap(false, true) {
			metricDialogRequests.WithLabelValues("rate_limited").Inc()
			c.sendError(protocol.CodeRateLimited, "dialog already in flight")
			return
		}
		go c.respondDialog(ctx, req)

	default:
		metricBadFrames.Inc()
		c.sendError(protocol.CodeBadMessage, "unexpected message type "+string(env.Type))
	}
}

// respondDialog runs one dialog generation off the reader goroutine and
// sends the reply or an error back to this client only.
func (c *client) respondDialog(ctx context.Context, req protocol.DialogRequest) {
	defer c.dialogBusy.Store(false)

	reply, err := c.srv.director.GenerateDialog(ctx, req.NPCID, req.Text, c.srv.sceneContext())
	switch {
	case errors.Is(err, ai.ErrUnknownNPC):
		metricDialogRequests.WithLabelValues("unknown_npc").Inc()
		c.sendError(protocol.CodeUnknownNPC, "unknown npc "+req.NPCID)
		return
	case err != nil:
		metricDialogRequests.WithLabelValues("error").Inc()
		c.srv.log.Error("dialog generation failed", "npc", req.NPCID, "error", err)
		c.sendError(protocol.CodeInternal, "dialog generation failed")
		return
	}

	metricDialogRequests.WithLabelValues("ok").Inc()
	c.sendFrame(protocol.TypeDialog, protocol.Dialog{
		NPCID:   req.NPCID,
		NPCName: c.srv.director.NPCName(req.NPCID),
		Text:    reply,
	})
}

func (c *client) sendWelcome() {
	welcome := protocol.Welcome{
		ProtocolVersion: protocol.Version,
		TickRate:        c.srv.eng.TickRate(),
	}
	if snap := c.srv.latest.Load(); snap != nil {
		welcome.Scene = snap.Scene
	}
	c.sendFrame(protocol.TypeWelcome, welcome)
}

func (c *client) sendError(code, msg string) {
	c.sendFrame(protocol.TypeError, protocol.Error{Code: code, Message: msg})
}

// sendFrame encodes and enqueues a frame for this client. A full buffer
// means the client is about to be dropped anyway, so the frame is
// discarded silently.
func (c *client) sendFrame(t protocol.Type, payload any) {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		c.srv.log.Error("encode frame", "type", t, "error", err)
		return
	}
	c.enqueue(frame)
}
