// Package message holds the in-memory, optimistically-updated message
// list a chat renders from, plus the typed parts a message is built of.
package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucentai/lucent-client/internal/research"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates the members of a message's parts sequence.
type PartType string

const (
	PartText             PartType = "text"
	PartReasoning        PartType = "reasoning"
	PartResearchProgress PartType = "deep-research-progress"
	PartClarifyQuestions PartType = "clarify-questions"
	PartToolInvocation   PartType = "tool-invocation"
	PartSource           PartType = "source"
	PartFile             PartType = "file"
	PartImage            PartType = "image"
	PartStopped          PartType = "stopped"
	PartReconnecting     PartType = "reconnecting"
)

// Part is one member of a message's ordered parts sequence. Only the
// fields relevant to its Type are populated.
type Part struct {
	Type PartType `json:"type"`

	// PartText, PartReasoning
	Text string `json:"text,omitempty"`

	// PartResearchProgress
	Progress *research.Progress `json:"progress,omitempty"`

	// PartClarifyQuestions
	Questions []string `json:"questions,omitempty"`

	// PartToolInvocation
	ToolName string `json:"toolName,omitempty"`
	ToolArgs string `json:"toolArgs,omitempty"`

	// PartSource
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`

	// PartFile, PartImage
	FileName  string `json:"fileName,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ReasoningPart builds a reasoning part.
func ReasoningPart(text string) Part {
	return Part{Type: PartReasoning, Text: text}
}

// ProgressPart builds a deep-research progress part from a snapshot.
func ProgressPart(p research.Progress) Part {
	return Part{Type: PartResearchProgress, Progress: &p}
}

// ClarifyPart builds a clarify-questions part.
func ClarifyPart(questions []string) Part {
	return Part{Type: PartClarifyQuestions, Questions: questions}
}

// SourcePart builds a source part.
func SourcePart(url, title string) Part {
	return Part{Type: PartSource, URL: url, Title: title}
}

// StoppedPart marks a generation the user stopped mid-stream.
func StoppedPart() Part {
	return Part{Type: PartStopped}
}

// ReconnectingPart marks a message whose stream is being resumed.
func ReconnectingPart() Part {
	return Part{Type: PartReconnecting}
}

// Message is one entry in the transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Parts     []Part    `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// Reasoning concatenates the message's reasoning parts.
func (m Message) Reasoning() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartReasoning {
			out += p.Text
		}
	}
	return out
}

// NewID generates a fresh local message ID. Timestamp-first so IDs sort
// by creation time, with a random suffix against same-millisecond sends.
func NewID() string {
	return fmt.Sprintf("local-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
