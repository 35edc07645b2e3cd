package voice

import (
	"io"
	"testing"
	"time"

	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

// stubConn feeds scripted upstream messages and records sent audio.
type stubConn struct {
	inbound chan *serverMessage
	sent    chan string
	closed  chan struct{}
}

func newStubConn() *stubConn {
	return &stubConn{
		inbound: make(chan *serverMessage, 16),
		sent:    make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (c *stubConn) SendAudio(b64 string) error {
	c.sent <- b64
	return nil
}

func (c *stubConn) read() (*serverMessage, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *stubConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func waitEvent(t *testing.T, s *Session, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("events closed while waiting for %q", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestPushAudioResamplesToCaptureRate(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)
	defer s.Close()

	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = 0.5
	}

	if err := s.PushAudio(samples, 48000); err != nil {
		t.Fatalf("PushAudio: %v", err)
	}

	b64 := <-conn.sent
	pcm, err := audio.DecodeBase64(b64)
	if err != nil {
		t.Fatalf("decode sent audio: %v", err)
	}
	// 4800 samples at 48k downsample to 1600 at 16k, two bytes each.
	if len(pcm) != 3200 {
		t.Fatalf("sent %d bytes, want 3200", len(pcm))
	}
}

func TestPushAudioRejectsBadRate(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)
	defer s.Close()

	if err := s.PushAudio([]float32{0.1}, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestModelAudioIsScheduledInOrder(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)
	defer s.Close()

	// One second of playback audio, then a short tail.
	chunk := audio.EncodeBase64(make([]byte, PlaybackRate*2))
	tail := audio.EncodeBase64(make([]byte, PlaybackRate))
	conn.inbound <- &serverMessage{ServerContent: &serverContent{
		ModelTurn: &contentPayload{Parts: []partPayload{
			{InlineData: &inlineBlob{MIMEType: "audio/pcm", Data: chunk}},
			{InlineData: &inlineBlob{MIMEType: "audio/pcm", Data: tail}},
		}},
	}}

	first := waitEvent(t, s, EventAudio)
	second := waitEvent(t, s, EventAudio)

	if first.Duration != time.Second {
		t.Fatalf("first duration = %v, want 1s", first.Duration)
	}
	if second.StartAt < first.StartAt+first.Duration {
		t.Fatalf("second chunk starts at %v, before first ends at %v",
			second.StartAt, first.StartAt+first.Duration)
	}
}

func TestTranscriptionsAndTurnComplete(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)
	defer s.Close()

	conn.inbound <- &serverMessage{ServerContent: &serverContent{
		InputTranscription:  &transcription{Text: "hello there"},
		OutputTranscription: &transcription{Text: "greetings"},
		TurnComplete:        true,
	}}

	in := waitEvent(t, s, EventInputTranscription)
	if in.Text != "hello there" {
		t.Fatalf("input transcription = %q", in.Text)
	}
	out := waitEvent(t, s, EventOutputTranscription)
	if out.Text != "greetings" {
		t.Fatalf("output transcription = %q", out.Text)
	}
	waitEvent(t, s, EventTurnComplete)
}

func TestInterruptDropsScheduledAudio(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)
	defer s.Close()

	chunk := audio.EncodeBase64(make([]byte, PlaybackRate*2))
	conn.inbound <- &serverMessage{ServerContent: &serverContent{
		ModelTurn: &contentPayload{Parts: []partPayload{
			{InlineData: &inlineBlob{Data: chunk}},
		}},
	}}
	waitEvent(t, s, EventAudio)

	conn.inbound <- &serverMessage{ServerContent: &serverContent{Interrupted: true}}
	ev := waitEvent(t, s, EventInterrupted)
	if len(ev.DroppedID) != 1 {
		t.Fatalf("dropped %d chunks, want 1", len(ev.DroppedID))
	}

	// After interruption the next chunk starts fresh.
	conn.inbound <- &serverMessage{ServerContent: &serverContent{
		ModelTurn: &contentPayload{Parts: []partPayload{
			{InlineData: &inlineBlob{Data: chunk}},
		}},
	}}
	next := waitEvent(t, s, EventAudio)
	if next.StartAt >= time.Second {
		t.Fatalf("start after interrupt = %v, cursor was not rewound", next.StartAt)
	}
}

func TestUpstreamCloseEndsEventStream(t *testing.T) {
	conn := newStubConn()
	s := newSession(conn)

	close(conn.inbound)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}
}
