package websocket

import (
	"encoding/json"
	"fmt"
)

const typeAuthenticate = "authenticate"

// inboundMessage is the closed set of frames a client may send.
type inboundMessage interface{ isInbound() }

type authenticateMessage struct {
	token string
}

type chatMessage struct {
	text string
}

// ignoredMessage is any well-formed frame that matches no known kind.
type ignoredMessage struct{}

func (authenticateMessage) isInbound() {}
func (chatMessage) isInbound()         {}
func (ignoredMessage) isInbound()      {}

type rawInbound struct {
	Type    string  `json:"type"`
	Token   string  `json:"token"`
	Message *string `json:"message"`
}

// parseInbound classifies a text frame. An error means the payload was not a
// JSON object of the expected shape.
func parseInbound(data []byte) (inboundMessage, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed inbound message: %w", err)
	}

	switch {
	case raw.Type == typeAuthenticate:
		return authenticateMessage{token: raw.Token}, nil
	case raw.Message != nil:
		return chatMessage{text: *raw.Message}, nil
	default:
		return ignoredMessage{}, nil
	}
}

type statusMessage struct {
	Type string `json:"type"`
}

type textMessage struct {
	Message string `json:"message"`
}

var (
	authSuccessFrame = mustMarshal(statusMessage{Type: "authentication_success"})
	authFailureFrame = mustMarshal(statusMessage{Type: "authentication_failure"})
)

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
