package voice

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

// EventType labels what a live session pushes back to the browser.
type EventType string

const (
	EventAudio               EventType = "audio"
	EventInputTranscription  EventType = "input_transcription"
	EventOutputTranscription EventType = "output_transcription"
	EventTurnComplete        EventType = "turn_complete"
	EventInterrupted         EventType = "interrupted"
	EventClosed              EventType = "closed"
)

// Event is one unit of session output. Audio carries base64 PCM16 at
// PlaybackRate plus its scheduled start offset on the playback clock.
type Event struct {
	Type      EventType     `json:"type"`
	ChunkID   string        `json:"chunkId,omitempty"`
	Audio     string        `json:"audio,omitempty"`
	StartAt   time.Duration `json:"startAt,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Text      string        `json:"text,omitempty"`
	DroppedID []string      `json:"droppedIds,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// liveConn is the slice of Upstream a session needs.
type liveConn interface {
	SendAudio(b64 string) error
	read() (*serverMessage, error)
	Close() error
}

// Session bridges one browser voice connection to one upstream live
// connection. Microphone frames go down at CaptureRate, synthesized audio
// comes back at PlaybackRate with playback offsets already assigned.
type Session struct {
	upstream  liveConn
	scheduler *PlaybackScheduler
	events    chan Event
	started   time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(upstream liveConn) *Session {
	s := &Session{
		upstream:  upstream,
		scheduler: NewPlaybackScheduler(),
		events:    make(chan Event, 64),
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Events returns the stream of session output. The channel closes when the
// session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// PushAudio takes raw microphone samples at the browser's hardware rate,
// resamples to CaptureRate and forwards them upstream.
func (s *Session) PushAudio(samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	resampled := audio.Downsample(samples, sampleRate, CaptureRate)
	pcm := audio.FloatsToPCM16(resampled)
	return s.upstream.SendAudio(audio.EncodeBase64(pcm))
}

// readLoop pumps upstream messages into events until the connection drops.
func (s *Session) readLoop() {
	defer close(s.events)

	for {
		msg, err := s.upstream.read()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("[voice] upstream read ended: %v", err)
				s.emit(Event{Type: EventClosed, Err: err.Error()})
			}
			return
		}
		if msg.ServerContent == nil {
			continue
		}
		s.handleContent(msg.ServerContent)
	}
}

func (s *Session) handleContent(content *serverContent) {
	if content.Interrupted {
		dropped := s.scheduler.Interrupt()
		s.emit(Event{Type: EventInterrupted, DroppedID: dropped})
		return
	}

	if content.InputTranscription != nil && content.InputTranscription.Text != "" {
		s.emit(Event{Type: EventInputTranscription, Text: content.InputTranscription.Text})
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		s.emit(Event{Type: EventOutputTranscription, Text: content.OutputTranscription.Text})
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			s.emitAudio(part.InlineData.Data)
		}
	}

	if content.TurnComplete {
		s.emit(Event{Type: EventTurnComplete})
	}
}

func (s *Session) emitAudio(b64 string) {
	pcm, err := audio.DecodeBase64(b64)
	if err != nil {
		log.Printf("[voice] bad audio chunk: %v", err)
		return
	}

	id := uuid.NewString()
	duration := time.Duration(audio.PCM16Duration(pcm, PlaybackRate) * float64(time.Second))
	start := s.scheduler.Schedule(id, duration, time.Since(s.started))

	s.emit(Event{
		Type:     EventAudio,
		ChunkID:  id,
		Audio:    b64,
		StartAt:  start,
		Duration: duration,
	})
}

// FinishChunk is called when the browser reports a chunk finished playing.
func (s *Session) FinishChunk(id string) {
	s.scheduler.Finish(id)
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.upstream.Close(); err != nil {
			log.Printf("[voice] upstream close: %v", err)
		}
	})
}
