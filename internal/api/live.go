package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Live message types sent by the client.
const (
	LIVE_SET   = "set"
	LIVE_CLEAR = "clear"
	LIVE_RESET = "reset"
)

// LiveMessage is one client instruction on a live session.
type LiveMessage struct {
	Type  string          `json:"type"`
	Item  string          `json:"item,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// LiveUpdate is sent after every instruction. Result is present once the response set is
// complete; Error carries a rejected instruction or an evaluation failure other than
// missing answers.
type LiveUpdate struct {
	Session   string                   `json:"session"`
	Sequence  int                      `json:"sequence"`
	Responses *domain.ResponseSet      `json:"responses"`
	Progress  *domain.Progress         `json:"progress"`
	Result    *domain.EvaluationResult `json:"result,omitempty"`
	Error     *domain.APIError         `json:"error,omitempty"`
}

// liveSession holds the answers of one websocket connection. Answers live only as long
// as the connection.
type liveSession struct {
	id           string
	assessmentID string
	conn         *websocket.Conn
	responses    *domain.ResponseSet
	sequence     int
	writeMu      sync.Mutex
}

func (s *Server) handleLive(c *gin.Context) {
	def, err := s.service.GetAssessment(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	session := &liveSession{
		id:           uuid.New().String(),
		assessmentID: def.ID,
		conn:         conn,
		responses:    domain.NewResponseSet(),
	}
	log := s.logger.WithFields(logrus.Fields{
		"session":        session.id,
		"assessment_id":  def.ID,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
	log.Info("Live session opened")

	done := make(chan struct{})
	go session.keepAlive(done)
	defer func() {
		close(done)
		conn.Close()
		log.WithField("messages", session.sequence).Info("Live session closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := s.sendUpdate(c, session, nil); err != nil {
		return
	}
	for {
		var msg LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Live session read failed")
			}
			return
		}
		session.sequence++
		if err := s.sendUpdate(c, session, session.apply(msg)); err != nil {
			log.WithError(err).Warn("Live session write failed")
			return
		}
	}
}

// apply changes the session answers. A rejected instruction leaves them unchanged.
func (l *liveSession) apply(msg LiveMessage) error {
	switch msg.Type {
	case LIVE_SET:
		if msg.Item == "" {
			return domain.NewValidationError("item", "set needs an item", nil)
		}
		var raw any
		if err := json.Unmarshal(msg.Value, &raw); err != nil || raw == nil {
			return domain.NewInvalidAnswerError(msg.Item, "value must be a string, number or boolean")
		}
		value, err := domain.ValueOf(raw)
		if err != nil {
			return domain.NewInvalidAnswerError(msg.Item, err.Error())
		}
		l.responses.Set(msg.Item, value)
	case LIVE_CLEAR:
		if msg.Item == "" {
			return domain.NewValidationError("item", "clear needs an item", nil)
		}
		l.responses.Clear(msg.Item)
	case LIVE_RESET:
		l.responses.Reset()
	default:
		return domain.NewValidationError("type", "must be set, clear or reset", msg.Type)
	}
	return nil
}

func (s *Server) sendUpdate(c *gin.Context, l *liveSession, rejected error) error {
	ctx := c.Request.Context()
	update := LiveUpdate{
		Session:   l.id,
		Sequence:  l.sequence,
		Responses: l.responses.Clone(),
	}
	requestID := c.GetString(middleware.CorrelationIDKey)

	progress, err := s.service.Progress(ctx, l.assessmentID, l.responses)
	if err != nil {
		update.Error = apiError(err, requestID)
	} else {
		update.Progress = progress
		if progress.Complete {
			result, err := s.service.Evaluate(ctx, l.assessmentID, l.responses)
			if err != nil {
				update.Error = apiError(err, requestID)
			} else {
				update.Result = result
			}
		} else if progress.Error != "" {
			_, err := s.service.Evaluate(ctx, l.assessmentID, l.responses)
			if err != nil {
				update.Error = apiError(err, requestID)
			}
		}
	}
	if rejected != nil {
		update.Error = apiError(rejected, requestID)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteJSON(update)
}

func (l *liveSession) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.writeMu.Lock()
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
