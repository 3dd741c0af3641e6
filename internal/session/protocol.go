// Package session provides the websocket client and wire types for talking
// to the assistant service. Every frame is a JSON text message of the form
// {"event": name, "data": payload}.
package session

import (
	"encoding/json"
	"fmt"
)

// Lifecycle events are synthesized by the client, never sent by the server.
const (
	EventConnecting      = "connecting"
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventReconnectFailed = "reconnect_failed"
)

// Inbound events.
const (
	EventTextChunk     = "receive_text_chunk"
	EventAudioChunk    = "receive_audio_chunk"
	EventWeatherUpdate = "weather_update"
	EventMapUpdate     = "map_update"
	EventSearchResults = "search_results_update"
	EventCodeExecution = "code_execution"
	EventListening     = "listening"
)

// Outbound events.
const (
	EventSendText  = "send_text_message"
	EventSendFrame = "send_video_frame"
)

// Envelope is the frame carried by every websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TextChunk is a fragment of assistant text.
type TextChunk struct {
	Text string `json:"text"`
}

// AudioChunk is base64 PCM16LE at 24 kHz mono.
type AudioChunk struct {
	Audio string `json:"audio"`
}

// CodeExecution opens the code widget.
type CodeExecution struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Listening reports whether server-side voice capture is active.
type Listening struct {
	Listening bool `json:"listening"`
}

// TextMessage is sent when the user submits the input line.
type TextMessage struct {
	Message string `json:"message"`
}

// VideoFrame carries one webcam frame as a JPEG data URL.
type VideoFrame struct {
	FrameData string `json:"frame_data"`
}

// Decode unmarshals an event payload into T.
func Decode[T any](ev Event) (T, error) {
	var v T
	if len(ev.Data) == 0 {
		return v, fmt.Errorf("%s: empty payload", ev.Name)
	}
	if err := json.Unmarshal(ev.Data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", ev.Name, err)
	}
	return v, nil
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
