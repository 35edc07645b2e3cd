// Package gateway is the only component that talks to the generative-AI
// vendor. It builds the bounded turn context, interprets tool-call responses
// and converts every failure into user-visible reply text.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kmondie/nebula-edge/backend/internal/analysis/intent"
	"github.com/kmondie/nebula-edge/backend/internal/model/chat"
	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

// Reply copy fixed by the product. Tool confirmations overwrite the model's
// text; with several tool calls in one response the last confirmation wins.
const (
	imageConfirmation    = "Neural art synthesis successful. Projection initialized."
	verifyDeclinedText   = "Identity verification signature mismatch. Continuing in standard guest mode."
	memoryStoredText     = "Memory bank updated. I've stored that fact for our future neural syncs."
	defaultThinkingTrace = "Neural processing active..."
)

// historyLimit bounds how many prior turns travel with each request.
const historyLimit = 8

// extraGroundingURLs is the message extra under which providers surface web
// citations.
const extraGroundingURLs = "grounding_urls"

// Service wraps the reasoning model and the media endpoints.
type Service struct {
	chatModel model.ChatModel
	images    ImageSynthesizer
	speech    SpeechSynthesizer
}

// NewService binds the three host tools to the chat model.
func NewService(ctx context.Context, chatModel model.ChatModel, images ImageSynthesizer, speech SpeechSynthesizer) (*Service, error) {
	if err := chatModel.BindTools(declaredTools()); err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		images:    images,
		speech:    speech,
	}, nil
}

// Respond generates a reply to one turn. It never returns an error: reasoning
// failures come back as user-visible reply text.
func (s *Service) Respond(ctx context.Context, prompt string, history []chat.Message, attachments []chat.Attachment, callbacks Callbacks, user UserContext) *Reply {
	// Image-generation intent short-circuits: no reasoning call, no tools.
	if intent.Classify(prompt) == intent.ImageCreation {
		if s.images == nil {
			return errorReply(errors.New("image synthesis unavailable"))
		}
		uri, err := s.images.GenerateImage(ctx, prompt)
		if err != nil {
			return errorReply(err)
		}
		return &Reply{Text: imageConfirmation, GeneratedImage: uri}
	}

	messages := s.buildMessages(prompt, history, attachments, user)

	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return errorReply(err)
	}

	text := response.Content
	overwritten := false
	for _, call := range response.ToolCalls {
		confirmation, ok := s.dispatchToolCall(ctx, call, callbacks)
		if !ok {
			continue
		}
		text = confirmation
		overwritten = true
	}

	// Artifacts are scanned out of the model-authored text, not out of any
	// tool confirmation that replaced it.
	artifact, cleaned := extractArtifact(response.Content)
	if !overwritten {
		text = cleaned
	}

	thinking := response.ReasoningContent
	if thinking == "" {
		thinking = defaultThinkingTrace
	}

	return &Reply{
		Text:          text,
		Thinking:      thinking,
		GroundingURLs: groundingFromMessage(response),
		Artifact:      artifact,
	}
}

// GenerateImage exposes the image path directly.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if s.images == nil {
		return "", errors.New("image synthesis unavailable")
	}
	return s.images.GenerateImage(ctx, prompt)
}

// Synthesize renders reply text as base64 PCM for playback.
func (s *Service) Synthesize(ctx context.Context, text string) (string, error) {
	if s.speech == nil {
		return "", nil
	}
	return s.speech.Synthesize(ctx, text)
}

func (s *Service) buildMessages(prompt string, history []chat.Message, attachments []chat.Attachment, user UserContext) []*schema.Message {
	messages := make([]*schema.Message, 0, historyLimit+2)
	messages = append(messages, schema.SystemMessage(systemInstruction(user)))

	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}
	for _, msg := range history[start:] {
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}

	current := schema.UserMessage(prompt)
	var imageParts []schema.ChatMessagePart
	for _, att := range attachments {
		if att.Type != chat.AttachmentImage {
			continue
		}
		mimeType, payload := audio.SplitDataURI(att.Data)
		if mimeType == "" {
			mimeType = att.MimeType
		}
		imageParts = append(imageParts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      audio.DataURI(mimeType, payload),
				MIMEType: mimeType,
			},
		})
	}
	if len(imageParts) > 0 {
		current.Content = ""
		current.MultiContent = append([]schema.ChatMessagePart{{
			Type: schema.ChatMessagePartTypeText,
			Text: prompt,
		}}, imageParts...)
	}

	return append(messages, current)
}

// dispatchToolCall runs one host tool synchronously and returns its
// confirmation text. Unknown tools are skipped.
func (s *Service) dispatchToolCall(ctx context.Context, call schema.ToolCall, callbacks Callbacks) (string, bool) {
	switch call.Function.Name {
	case toolVerifyIdentity:
		if callbacks.VerifyIdentity == nil {
			return "", false
		}
		name, verified := callbacks.VerifyIdentity(ctx)
		if !verified {
			return verifyDeclinedText, true
		}
		return fmt.Sprintf("Identity confirmed: %s. Protocols updated to elite status. What is our next move?", name), true

	case toolReprogramUI:
		var change ThemeChange
		if err := json.Unmarshal([]byte(call.Function.Arguments), &change); err != nil {
			log.Printf("[gateway] malformed reprogram arguments: %v", err)
			return "", false
		}
		if callbacks.ApplyTheme != nil {
			callbacks.ApplyTheme(change)
		}
		return fmt.Sprintf("Neural interface reprogrammed to '%s'. The visual stream has been updated to your specifications.", change.LayoutStyle), true

	case toolStoreMemory:
		var args struct {
			MemoryFact string `json:"memory_fact"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			log.Printf("[gateway] malformed memory arguments: %v", err)
			return "", false
		}
		if callbacks.StoreMemory != nil {
			callbacks.StoreMemory(args.MemoryFact)
		}
		return memoryStoredText, true
	}

	log.Printf("[gateway] ignoring unknown tool call: %s", call.Function.Name)
	return "", false
}

func groundingFromMessage(msg *schema.Message) []chat.GroundingURL {
	if msg.Extra == nil {
		return nil
	}
	urls, _ := msg.Extra[extraGroundingURLs].([]chat.GroundingURL)
	return urls
}

func errorReply(err error) *Reply {
	return &Reply{Text: fmt.Sprintf("🚨 NEURAL SYNC ERROR: %v", err)}
}
