// Package server decodes client chat frames received over WebSocket.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/directchat/internal/chat"
)

// decodeClientMessage parses one client frame, rejecting unknown fields so
// typos in the protocol surface as errors instead of silent empty values.
func decodeClientMessage(raw []byte) (chat.ClientMessage, error) {
	var msg chat.ClientMessage

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return chat.ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return msg, nil
}
