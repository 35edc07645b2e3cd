package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	readTimeout  = 60 * time.Second
	maxDialTries = 3

	// CaptureRate is what the upstream live endpoint ingests; PlaybackRate is
	// what it emits.
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// Live wire protocol structures for the upstream realtime endpoint.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *contentPayload   `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type contentPayload struct {
	Parts []partPayload `json:"parts"`
}

type partPayload struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineBlob `json:"inlineData,omitempty"`
}

type inlineBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineBlob `json:"mediaChunks"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn           *contentPayload `json:"modelTurn,omitempty"`
	TurnComplete        bool            `json:"turnComplete,omitempty"`
	Interrupted         bool            `json:"interrupted,omitempty"`
	InputTranscription  *transcription  `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription  `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

// Upstream is a single live connection to the realtime voice endpoint.
type Upstream struct {
	conn *websocket.Conn
}

// DialUpstream connects with retry and completes the setup handshake. The
// instruction becomes the model's system prompt; voiceName selects the
// prebuilt synthesis voice.
func DialUpstream(ctx context.Context, endpoint, model, instruction, voiceName string) (*Upstream, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}

	var conn *websocket.Conn
	var lastErr error
	for i := 0; i < maxDialTries; i++ {
		c, _, err := dialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			conn = c
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	if conn == nil {
		return nil, fmt.Errorf("live dial failed after %d tries: %w", maxDialTries, lastErr)
	}

	up := &Upstream{conn: conn}

	setup := setupMessage{Setup: setupPayload{
		Model: model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voiceName},
				},
			},
		},
		SystemInstruction: &contentPayload{Parts: []partPayload{{Text: instruction}}},
	}}
	if err := up.writeJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("live setup write failed: %w", err)
	}

	// The endpoint acks setup before any media flows.
	msg, err := up.read()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("live setup ack failed: %w", err)
	}
	if msg.SetupComplete == nil {
		conn.Close()
		return nil, fmt.Errorf("live setup rejected")
	}

	return up, nil
}

// SendAudio forwards a base64 PCM chunk captured from the browser.
func (u *Upstream) SendAudio(b64 string) error {
	frame := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []inlineBlob{{
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", CaptureRate),
			Data:     b64,
		}},
	}}
	return u.writeJSON(frame)
}

func (u *Upstream) writeJSON(v any) error {
	u.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return u.conn.WriteJSON(v)
}

func (u *Upstream) read() (*serverMessage, error) {
	u.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := u.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("live message decode failed: %w", err)
	}
	return &msg, nil
}

func (u *Upstream) Close() error {
	return u.conn.Close()
}
