package server

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"mkvert/model"
)

// Hub 一个连接的请求与应答通道
type Hub struct {
	s    *Server
	conn *websocket.Conn
	// request
	msg chan model.Msg
	// response
	replies chan model.Msg
}

func NewHub(s *Server, conn *websocket.Conn) *Hub {
	return &Hub{
		s:       s,
		conn:    conn,
		msg:     make(chan model.Msg, 10),
		replies: make(chan model.Msg, 10),
	}
}

// handleRequest answers requests in order until the request channel closes.
func (h *Hub) handleRequest() {
	for msg := range h.msg {
		h.replies <- h.handle(msg)
	}
	close(h.replies)
}

func (h *Hub) handleResponse() {
	for reply := range h.replies {
		if err := h.conn.WriteJSON(&reply); err != nil {
			log.WithFields(log.Fields{
				"id":   reply.ID,
				"type": reply.Type,
			}).WithError(err).Warn("reply not delivered")
		}
	}
}

func (h *Hub) handle(msg model.Msg) model.Msg {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	entry := log.WithFields(log.Fields{"id": id, "type": msg.Type})

	var reply string
	switch msg.Type {
	case model.MsgBuild:
		reply = model.MsgResult
	case model.MsgReport:
		reply = model.MsgReport
	case model.MsgError:
		return model.Msg{Type: model.MsgError, ID: id, Content: msg.Content}
	default:
		entry.Warn("no such type")
		return model.Msg{Type: model.MsgError, ID: id, Content: fmt.Sprintf("unknown message type %q", msg.Type)}
	}

	content, err := h.s.run(msg.Type, []byte(msg.Content))
	if err != nil {
		entry.WithError(err).Warn("build request failed")
		return model.Msg{Type: model.MsgError, ID: id, Content: model.Kind(err) + ": " + err.Error()}
	}
	entry.Info("build request served")
	return model.Msg{Type: reply, ID: id, Content: content}
}
