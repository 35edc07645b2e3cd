package voice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	voiceService "github.com/kmondie/nebula-edge/backend/internal/service/voice"
	"github.com/kmondie/nebula-edge/backend/internal/store"
	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

func TestDecodeAudioFrame(t *testing.T) {
	pcm := audio.FloatsToPCM16(make([]float32, 160))
	raw, _ := json.Marshal(audioFrame{Audio: audio.EncodeBase64(pcm), SampleRate: 16000})

	samples, rate, errText := decodeAudioFrame(raw)
	if errText != "" {
		t.Fatalf("decode failed: %s", errText)
	}
	if rate != 16000 {
		t.Fatalf("rate = %d, want 16000", rate)
	}
	if len(samples) != 160 {
		t.Fatalf("samples = %d, want 160", len(samples))
	}
}

func TestDecodeAudioFrameRejectsBadPayloads(t *testing.T) {
	if _, _, errText := decodeAudioFrame(json.RawMessage(`{`)); errText != "invalid audio payload" {
		t.Fatalf("malformed json: %q", errText)
	}
	if _, _, errText := decodeAudioFrame(json.RawMessage(`{"audio":"!!!","sampleRate":16000}`)); errText != "invalid audio encoding" {
		t.Fatalf("bad base64: %q", errText)
	}
}

// fakeLiveEndpoint stands in for the upstream realtime service: it acks
// setup, then answers every media chunk with one synthesized audio turn.
func fakeLiveEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup map[string]json.RawMessage
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		if _, ok := setup["setup"]; !ok {
			t.Error("first upstream message is not a setup frame")
			return
		}
		if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}

		reply := audio.EncodeBase64(make([]byte, 4800))
		for {
			var msg map[string]json.RawMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if _, ok := msg["realtimeInput"]; !ok {
				continue
			}
			turn := map[string]any{"serverContent": map[string]any{
				"modelTurn": map[string]any{"parts": []any{
					map[string]any{"inlineData": map[string]any{
						"mimeType": "audio/pcm;rate=24000",
						"data":     reply,
					}},
				}},
			}}
			if err := conn.WriteJSON(turn); err != nil {
				return
			}
			if err := conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}}); err != nil {
				return
			}
		}
	}))
}

func wsAddr(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// The browser feeds microphone frames while synthesized audio and error
// frames stream back over the same connection. Interleaving good and bad
// inbound frames keeps the event pump and the error path writing at the
// same time.
func TestWebSocketBridgesAudioBothWays(t *testing.T) {
	upstream := fakeLiveEndpoint(t)
	defer upstream.Close()

	vault, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	t.Cleanup(func() { vault.Close() })

	profiles := identity.NewMemoryStore(identity.Seed())
	stateSvc, err := state.NewContainer(vault, profiles)
	if err != nil {
		t.Fatalf("state container: %v", err)
	}

	voiceSvc, err := voiceService.NewService(voiceService.Options{
		Endpoint: wsAddr(upstream.URL),
		Model:    "relay-live-test",
	}, profiles)
	if err != nil {
		t.Fatalf("voice service: %v", err)
	}

	r := chi.NewRouter()
	New(voiceSvc, stateSvc).RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsAddr(server.URL)+"/voice/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	micPCM := audio.FloatsToPCM16(make([]float32, 1600))
	frame, _ := json.Marshal(map[string]any{
		"type": "audio",
		"data": audioFrame{Audio: audio.EncodeBase64(micPCM), SampleRate: 16000},
	})

	go func() {
		for i := 0; i < 20; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			if i%5 == 0 {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var gotAudio, gotError, gotTurn bool
	for !(gotAudio && gotError && gotTurn) {
		var msg struct {
			Type  string `json:"type"`
			Audio string `json:"audio"`
			Error string `json:"error"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read (audio=%v error=%v turn=%v): %v", gotAudio, gotError, gotTurn, err)
		}
		switch msg.Type {
		case "audio":
			if msg.Audio == "" {
				t.Fatal("audio event without payload")
			}
			gotAudio = true
		case "error":
			if !strings.Contains(msg.Error, "bogus") {
				t.Fatalf("error = %q", msg.Error)
			}
			gotError = true
		case "turn_complete":
			gotTurn = true
		}
	}
}

// A close request from the browser ends the session with a normal close
// frame, not a dropped connection.
func TestWebSocketCloseRequestEndsCleanly(t *testing.T) {
	upstream := fakeLiveEndpoint(t)
	defer upstream.Close()

	vault, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	t.Cleanup(func() { vault.Close() })

	profiles := identity.NewMemoryStore(identity.Seed())
	stateSvc, err := state.NewContainer(vault, profiles)
	if err != nil {
		t.Fatalf("state container: %v", err)
	}
	voiceSvc, err := voiceService.NewService(voiceService.Options{
		Endpoint: wsAddr(upstream.URL),
		Model:    "relay-live-test",
	}, profiles)
	if err != nil {
		t.Fatalf("voice service: %v", err)
	}

	r := chi.NewRouter()
	New(voiceSvc, stateSvc).RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsAddr(server.URL)+"/voice/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"close"}`)); err != nil {
		t.Fatalf("write close request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("expected normal closure, got %v", err)
			}
			return
		}
	}
}
