// Package intent classifies a prompt before it reaches the reasoning model.
// Image-generation requests short-circuit to the image pipeline and never
// issue a reasoning call.
package intent

import (
	"regexp"
	"strings"
)

// Label names the routing decision for a prompt.
type Label string

const (
	Chat          Label = "chat"
	ImageCreation Label = "image"
)

// Phrases like "generate an image of X" or "make me a picture". Matching is
// deliberately loose: a false positive costs one image call, a false negative
// only loses the shortcut.
var imagePattern = regexp.MustCompile(`(?i)generate.*image|create.*image|make.*picture`)

// Classify routes a prompt.
func Classify(prompt string) Label {
	if IsImageRequest(prompt) {
		return ImageCreation
	}
	return Chat
}

// IsImageRequest reports whether the prompt asks for image synthesis.
func IsImageRequest(prompt string) bool {
	return imagePattern.MatchString(strings.TrimSpace(prompt))
}
