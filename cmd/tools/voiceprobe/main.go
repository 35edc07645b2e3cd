// voiceprobe exercises the live voice bridge from the command line: it feeds
// a synthetic tone through a session and reports what comes back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/joho/godotenv"

	"github.com/kmondie/nebula-edge/backend/internal/config"
	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
	"github.com/kmondie/nebula-edge/backend/internal/service/voice"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if !cfg.Live.Enabled {
		log.Fatal("live voice is not configured, set LIVE_ENDPOINT and LIVE_MODEL")
	}

	name := flag.String("name", identity.DefaultName, "identity to speak as")
	freq := flag.Float64("freq", 440, "tone frequency in Hz")
	seconds := flag.Int("seconds", 2, "tone length to send")
	rate := flag.Int("rate", 48000, "capture sample rate of the synthetic tone")
	listen := flag.Duration("listen", 30*time.Second, "how long to wait for session output")
	flag.Parse()

	svc, err := voice.NewService(voice.Options{
		Endpoint: cfg.Live.Endpoint,
		Model:    cfg.Live.Model,
	}, identity.NewMemoryStore(identity.Seed()))
	if err != nil {
		log.Fatalf("failed to initialize voice service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *listen+time.Minute)
	defer cancel()

	session, err := svc.Open(ctx, gateway.UserContext{Name: *name})
	if err != nil {
		log.Fatalf("failed to open live session: %v", err)
	}
	defer session.Close()

	log.Printf("session open, sending %ds tone at %.0f Hz", *seconds, *freq)

	// Send 100 ms frames, the way a browser capture loop would.
	frameLen := *rate / 10
	frames := *seconds * 10
	for i := 0; i < frames; i++ {
		frame := make([]float32, frameLen)
		for j := range frame {
			t := float64(i*frameLen+j) / float64(*rate)
			frame[j] = float32(0.4 * math.Sin(2*math.Pi*(*freq)*t))
		}
		if err := session.PushAudio(frame, *rate); err != nil {
			log.Fatalf("push audio failed: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("tone sent, listening for %s", *listen)

	deadline := time.After(*listen)
	var chunks int
	var playback time.Duration
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				report(chunks, playback)
				return
			}
			switch ev.Type {
			case voice.EventAudio:
				chunks++
				playback += ev.Duration
				log.Printf("audio chunk %s start=%s duration=%s", ev.ChunkID, ev.StartAt, ev.Duration)
			case voice.EventInputTranscription:
				log.Printf("heard: %q", ev.Text)
			case voice.EventOutputTranscription:
				log.Printf("spoke: %q", ev.Text)
			case voice.EventInterrupted:
				log.Printf("interrupted, %d chunks dropped", len(ev.DroppedID))
			case voice.EventTurnComplete:
				log.Printf("turn complete")
			case voice.EventClosed:
				log.Printf("session closed: %s", ev.Err)
				report(chunks, playback)
				return
			}
		case <-deadline:
			report(chunks, playback)
			return
		}
	}
}

func report(chunks int, playback time.Duration) {
	fmt.Printf("received %d audio chunks, %s of playback\n", chunks, playback)
}
