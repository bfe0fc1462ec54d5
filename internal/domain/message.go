package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	MessagePlayerJoined   MessageType = "player_joined"
	MessagePlayerLeft     MessageType = "player_left"
	MessageGameStarted    MessageType = "game_started"
	MessageGameUpdated    MessageType = "game_updated"
	MessageSyncRequest    MessageType = "sync_request"
	MessageSyncResponse   MessageType = "sync_response"
	MessagePhaseChange    MessageType = "phase_change"
	MessagePlayerAnswered MessageType = "player_answered"
)

func (t MessageType) Known() bool {
	switch t {
	case MessagePlayerJoined, MessagePlayerLeft, MessageGameStarted, MessageGameUpdated,
		MessageSyncRequest, MessageSyncResponse, MessagePhaseChange, MessagePlayerAnswered:
		return true
	}

	return false
}

// Message is the unit exchanged over every transport. Payload holds either a
// Session or a PlayerAnswer depending on Type. Timestamp is advisory.
type Message struct {
	Type      MessageType     `json:"type"`
	Code      string          `json:"code"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	GameState *GameState      `json:"gameState,omitempty"`
	// Removed is the player the host took out of the game. Only a host's
	// player_left carries it.
	Removed   string `json:"removed,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewSessionMessage(t MessageType, s *Session, gs *GameState, now time.Time) (Message, error) {
	m := Message{
		Type:      t,
		Code:      s.Code,
		GameState: gs,
		Timestamp: now.UnixMilli(),
	}

	b, err := json.Marshal(s)
	if err != nil {
		return Message{}, fmt.Errorf("marshal session %s: %w", s.Code, err)
	}
	m.Payload = b

	return m, nil
}

// NewRemovalMessage announces that the host removed playerID. s is the
// roster without them.
func NewRemovalMessage(s *Session, playerID string, now time.Time) (Message, error) {
	m, err := NewSessionMessage(MessagePlayerLeft, s, nil, now)
	if err != nil {
		return Message{}, err
	}
	m.Removed = playerID

	return m, nil
}

func NewAnswerMessage(code string, pa PlayerAnswer, now time.Time) (Message, error) {
	b, err := json.Marshal(pa)
	if err != nil {
		return Message{}, fmt.Errorf("marshal answer: %w", err)
	}

	return Message{
		Type:      MessagePlayerAnswered,
		Code:      code,
		Payload:   b,
		Timestamp: now.UnixMilli(),
	}, nil
}

func NewSyncRequest(code string, now time.Time) Message {
	return Message{
		Type:      MessageSyncRequest,
		Code:      code,
		Timestamp: now.UnixMilli(),
	}
}

// Session decodes the payload as a session. It returns nil without error
// when the message carries no payload.
func (m Message) Session() (*Session, error) {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return nil, fmt.Errorf("decode %s session payload: %w", m.Type, err)
	}

	return &s, nil
}

func (m Message) Answer() (*PlayerAnswer, error) {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil, nil
	}

	var pa PlayerAnswer
	if err := json.Unmarshal(m.Payload, &pa); err != nil {
		return nil, fmt.Errorf("decode %s answer payload: %w", m.Type, err)
	}

	return &pa, nil
}
