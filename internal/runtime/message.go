package runtime

import (
	"bytes"
	"encoding/json"
)

// DefaultSceneKind labels runtime output carrying a scene envelope.
const DefaultSceneKind = "scene"

// Message is one unit of runtime output.
type Message struct {
	Kind string `json:"kind"`
	Data string `json:"data"`
}

// ParseMessage reads a transport frame. A JSON object with a string kind is
// taken as a Message; anything else is raw scene output labelled sceneKind.
func ParseMessage(frame []byte, sceneKind string) Message {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var framed struct {
			Kind *string         `json:"kind"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &framed); err == nil && framed.Kind != nil {
			msg := Message{Kind: *framed.Kind}
			var text string
			if err := json.Unmarshal(framed.Data, &text); err == nil {
				msg.Data = text
			} else {
				msg.Data = string(framed.Data)
			}
			return msg
		}
	}
	return Message{Kind: sceneKind, Data: string(frame)}
}
