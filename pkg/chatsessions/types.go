package chatsessions

// Source kinds reported by Normalize.
const (
	SourceKindSession    = "vscodeSession"
	SourceKindChatReplay = "chatreplay"
)

// Session is the canonical form of one chat session archive. Both input
// shapes normalize into this; persistence never sees the raw shapes.
type Session struct {
	SessionID         string
	Version           *int64
	RequesterUsername *string
	ResponderUsername *string
	InitialLocation   *string
	CustomTitle       *string
	CreationDateMS    *int64
	LastMessageDateMS *int64
	IsImported        bool
	Requests          []Request

	// Raw is the full session payload, kept for the redacted raw_json
	// column. For legacy prompts this is the synthesized session document.
	Raw *Value
}

// Request is one prompt/response turn.
type Request struct {
	RequestID          string
	TimestampMS        *int64
	PromptText         *string
	ResponseID         *string
	Agent              *Agent
	IsCanceled         bool
	TimingFirstProgress *int64
	TimingTotal        *int64

	// Metadata is result.metadata, the free-form blob the command and
	// exit-code heuristics walk. Result is the whole result mapping.
	Metadata *Value
	Result   *Value

	Parts             []Part
	Variables         []Variable
	Responses         []ResponseItem
	ResultMessages    []ResultMessage
	Followups         []Followup
	ContentReferences []ContentReference
	CodeCitations     []CodeCitation
	ToolOutputs       []ToolOutput

	// Raw is the full request object, used as the last fallback when
	// hunting for command text.
	Raw *Value
}

// Agent describes the responding agent declared by a request.
type Agent struct {
	ID         string
	Descriptor *Value
	IsDefault  bool
	Locations  *Value
}

// Part is one structured element of the prompt message.
type Part struct {
	Kind        *string
	Text        *Value
	Range       *Value
	EditorRange *Value
}

// Variable is one entry of the request's variableData list.
type Variable struct {
	ID               string
	Name             *string
	Value            *Value
	IsFile           bool
	ModelDescription *string
}

// ResponseItem is one element of the response array.
type ResponseItem struct {
	Value              *Value
	SupportsHTML       bool
	SupportsThemeIcons bool

	// Raw keeps the whole response element for exit-code scanning.
	Raw *Value
}

// ResultMessage is one entry of result.messages.
type ResultMessage struct {
	Role    *string
	Content *Value
}

// Followup is one suggested follow-up prompt.
type Followup struct {
	Kind    *string
	AgentID *string
	Message *Value
}

// ContentReference points at content the response cited.
type ContentReference struct {
	Reference *Value
	Range     *Value
}

// CodeCitation is an attribution record for generated code.
type CodeCitation struct {
	Citation *Value
}

// ToolOutput is a structured tool result or code block.
type ToolOutput struct {
	Kind    string
	Payload *Value
}
