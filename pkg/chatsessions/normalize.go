package chatsessions

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrUnrecognizedFormat reports that a document matched neither the chat
// session archive shape nor any legacy chatreplay shape.
var ErrUnrecognizedFormat = errors.New("unrecognized chat history format")

// Normalize parses a raw archive document and converts it into canonical
// sessions. It recognizes two shapes:
//
//   - a chat session archive: an object with a "requests" array plus at
//     least one of the version/requester/responder markers
//   - legacy chatreplay exports: an object with a "prompts" array, a bare
//     array of prompt objects, or a single bare prompt object
//
// Legacy prompts are synthesized into minimal single-request sessions so
// the persistence layer only ever sees one shape. Normalize is a pure
// transform with no side effects.
func Normalize(data []byte) ([]*Session, string, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, "", err
	}

	switch doc.Kind {
	case KindArray:
		var sessions []*Session
		for _, item := range doc.Items {
			if item.Kind == KindObject {
				sessions = append(sessions, promptToSession(item))
			}
		}
		return sessions, SourceKindChatReplay, nil

	case KindObject:
		if isSessionArchive(doc) {
			return []*Session{sessionFromArchive(doc)}, SourceKindSession, nil
		}
		if prompts := doc.Get("prompts"); prompts != nil && prompts.Kind == KindArray {
			var sessions []*Session
			for _, item := range prompts.Items {
				if item.Kind == KindObject {
					sessions = append(sessions, promptToSession(item))
				}
			}
			return sessions, SourceKindChatReplay, nil
		}
		return []*Session{promptToSession(doc)}, SourceKindChatReplay, nil
	}

	return nil, "", ErrUnrecognizedFormat
}

func isSessionArchive(doc *Value) bool {
	requests := doc.Get("requests")
	if requests == nil || requests.Kind != KindArray {
		return false
	}
	return doc.Get("version") != nil ||
		doc.Get("requesterUsername") != nil ||
		doc.Get("responderUsername") != nil
}

func sessionFromArchive(doc *Value) *Session {
	sessionID := firstString(doc, "sessionId", "sessionID")

	s := &Session{
		SessionID:         sessionID,
		Version:           intPtr(doc.Get("version")),
		RequesterUsername: strPtr(doc.Get("requesterUsername")),
		ResponderUsername: strPtr(doc.Get("responderUsername")),
		InitialLocation:   strPtr(doc.Get("initialLocation")),
		CustomTitle:       strPtr(doc.Get("customTitle")),
		CreationDateMS:    intPtr(doc.Get("creationDate")),
		LastMessageDateMS: intPtr(doc.Get("lastMessageDate")),
		IsImported:        doc.Get("isImported").BoolVal(),
		Raw:               doc,
	}

	requests := doc.Get("requests")
	for index, raw := range requests.Items {
		if raw.Kind != KindObject {
			continue
		}
		s.Requests = append(s.Requests, requestFromValue(sessionID, index, raw))
	}
	return s
}

func requestFromValue(sessionID string, index int, raw *Value) Request {
	requestID := firstString(raw, "requestId", "id")
	if requestID == "" {
		requestID = fmt.Sprintf("%s:%d", sessionID, index)
	}

	req := Request{
		RequestID:   requestID,
		TimestampMS: intPtr(raw.Get("timestamp")),
		ResponseID:  strPtr(raw.Get("responseId")),
		IsCanceled:  raw.Get("isCanceled").BoolVal(),
		Raw:         raw,
	}

	if message := objectOrNil(raw.Get("message")); message != nil {
		req.PromptText = strPtr(message.Get("text"))
		if parts := arrayOrNil(message.Get("parts")); parts != nil {
			for _, part := range parts.Items {
				if part.Kind != KindObject {
					continue
				}
				req.Parts = append(req.Parts, Part{
					Kind:        strPtr(part.Get("kind")),
					Text:        part.Get("text"),
					Range:       part.Get("range"),
					EditorRange: part.Get("editorRange"),
				})
			}
		}
	}

	if agent := objectOrNil(raw.Get("agent")); agent != nil {
		if id, ok := agent.Get("id").StringVal(); ok && id != "" {
			req.Agent = &Agent{
				ID:         id,
				Descriptor: agent,
				IsDefault:  agent.Get("isDefault").BoolVal(),
				Locations:  agent.Get("locations"),
			}
		}
	}

	if result := objectOrNil(raw.Get("result")); result != nil {
		req.Result = result
		req.Metadata = objectOrNil(result.Get("metadata"))
		if timings := objectOrNil(result.Get("timings")); timings != nil {
			req.TimingFirstProgress = intPtr(timings.Get("firstProgress"))
			req.TimingTotal = intPtr(timings.Get("totalElapsed"))
		}
		if messages := arrayOrNil(result.Get("messages")); messages != nil {
			for _, item := range messages.Items {
				if item.Kind != KindObject {
					continue
				}
				req.ResultMessages = append(req.ResultMessages, ResultMessage{
					Role:    strPtr(item.Get("role")),
					Content: item.Get("content"),
				})
			}
		}
	}

	if variables := arrayOrNil(raw.Get("variableData")); variables != nil {
		for i, variable := range variables.Items {
			if variable.Kind != KindObject {
				continue
			}
			id := firstString(variable, "id", "name")
			if id == "" {
				id = fmt.Sprintf("var-%d", i)
			}
			req.Variables = append(req.Variables, Variable{
				ID:               id,
				Name:             strPtr(variable.Get("name")),
				Value:            variable.Get("value"),
				IsFile:           variable.Get("isFile").BoolVal(),
				ModelDescription: strPtr(variable.Get("modelDescription")),
			})
		}
	}

	if responses := arrayOrNil(raw.Get("response")); responses != nil {
		for _, response := range responses.Items {
			if response.Kind != KindObject {
				continue
			}
			req.Responses = append(req.Responses, ResponseItem{
				Value:              response.Get("value"),
				SupportsHTML:       response.Get("supportHtml").BoolVal(),
				SupportsThemeIcons: response.Get("supportThemeIcons").BoolVal(),
				Raw:                response,
			})
		}
	}

	if followups := arrayOrNil(raw.Get("followups")); followups != nil {
		for _, followup := range followups.Items {
			if followup.Kind != KindObject {
				continue
			}
			req.Followups = append(req.Followups, Followup{
				Kind:    strPtr(followup.Get("kind")),
				AgentID: strPtr(followup.Get("agentId")),
				Message: followup.Get("message"),
			})
		}
	}

	if refs := arrayOrNil(raw.Get("contentReferences")); refs != nil {
		for _, ref := range refs.Items {
			if ref.Kind != KindObject {
				continue
			}
			reference := ref.Get("reference")
			var refRange *Value
			if inner := objectOrNil(reference); inner != nil {
				refRange = inner.Get("range")
			}
			req.ContentReferences = append(req.ContentReferences, ContentReference{
				Reference: reference,
				Range:     refRange,
			})
		}
	}

	if citations := arrayOrNil(raw.Get("codeCitations")); citations != nil {
		for _, citation := range citations.Items {
			if citation.Kind != KindObject {
				continue
			}
			req.CodeCitations = append(req.CodeCitations, CodeCitation{Citation: citation})
		}
	}

	if req.Metadata != nil {
		if blocks := arrayOrNil(req.Metadata.Get("codeBlocks")); blocks != nil {
			for _, block := range blocks.Items {
				if block.Kind != KindObject {
					continue
				}
				req.ToolOutputs = append(req.ToolOutputs, ToolOutput{Kind: "codeBlock", Payload: block})
			}
		}
	}
	if outputs := arrayOrNil(raw.Get("toolOutputs")); outputs != nil {
		for _, output := range outputs.Items {
			if output.Kind != KindObject {
				continue
			}
			kind := "toolOutput"
			if k, ok := output.Get("kind").StringVal(); ok && k != "" {
				kind = k
			}
			req.ToolOutputs = append(req.ToolOutputs, ToolOutput{Kind: kind, Payload: output})
		}
	}

	return req
}

// promptToSession synthesizes a minimal single-request session from a
// legacy chatreplay prompt. Log entries with kind "response" feed the
// response array and result message list; "request" entries contribute
// their followups.
func promptToSession(prompt *Value) *Session {
	sessionID := firstString(prompt, "promptId", "id")
	if sessionID == "" {
		digest := sha256.Sum256([]byte(Dump(prompt)))
		sessionID = hex.EncodeToString(digest[:])
	}

	messageText := ""
	if text, ok := prompt.Get("prompt").StringVal(); ok {
		messageText = text
	}

	requestID := sessionID + ":request"
	if id, ok := prompt.Get("promptId").StringVal(); ok && id != "" {
		requestID = id
	}

	responseValues := Array()
	resultMessages := Array()
	followupValues := Array()

	req := Request{
		RequestID:   requestID,
		TimestampMS: intPtr(prompt.Get("timestamp")),
		PromptText:  &messageText,
		Parts: []Part{{
			Kind:        ptr("text"),
			Text:        String(messageText),
			Range:       Null(),
			EditorRange: Null(),
		}},
	}

	if logs := arrayOrNil(prompt.Get("logs")); logs != nil {
		for _, log := range logs.Items {
			if log.Kind != KindObject {
				continue
			}
			kind, _ := log.Get("kind").StringVal()
			switch kind {
			case "response":
				payload := log.Get("response")
				if payload.IsNull() {
					payload = log.Get("result")
				}
				var content *Value
				if text, ok := payload.StringVal(); ok {
					content = String(text)
				} else {
					content = String(Dump(payload))
				}
				responseItem := Object(
					M("value", content),
					M("supportThemeIcons", Bool(false)),
					M("supportHtml", Bool(false)),
				)
				responseValues.Items = append(responseValues.Items, responseItem)
				req.Responses = append(req.Responses, ResponseItem{Value: content, Raw: responseItem})

				message := Object(M("role", String("assistant")), M("content", content))
				resultMessages.Items = append(resultMessages.Items, message)
				req.ResultMessages = append(req.ResultMessages, ResultMessage{
					Role:    ptr("assistant"),
					Content: content,
				})
			case "request":
				if followups := arrayOrNil(log.Get("followups")); followups != nil {
					for _, followup := range followups.Items {
						if followup.Kind != KindObject {
							continue
						}
						followupValues.Items = append(followupValues.Items, followup)
						req.Followups = append(req.Followups, Followup{
							Kind:    strPtr(followup.Get("kind")),
							AgentID: strPtr(followup.Get("agentId")),
							Message: followup.Get("message"),
						})
					}
				}
			}
		}
	}

	result := Object(M("messages", resultMessages))
	req.Result = result

	rawRequest := Object(
		M("requestId", String(requestID)),
		M("message", Object(
			M("text", String(messageText)),
			M("parts", Array(Object(
				M("kind", String("text")),
				M("text", String(messageText)),
				M("range", Null()),
				M("editorRange", Null()),
			))),
		)),
		M("response", responseValues),
		M("followups", followupValues),
		M("isCanceled", Bool(false)),
		M("timestamp", orNull(prompt.Get("timestamp"))),
		M("result", result),
	)
	req.Raw = rawRequest

	timestamp := intPtr(prompt.Get("timestamp"))
	version := int64(1)

	raw := Object(
		M("version", Int(version)),
		M("sessionId", String(sessionID)),
		M("initialLocation", String("panel")),
		M("creationDate", orNull(prompt.Get("timestamp"))),
		M("lastMessageDate", orNull(prompt.Get("timestamp"))),
		M("requests", Array(rawRequest)),
	)

	return &Session{
		SessionID:         sessionID,
		Version:           &version,
		InitialLocation:   ptr("panel"),
		CreationDateMS:    timestamp,
		LastMessageDateMS: timestamp,
		Requests:          []Request{req},
		Raw:               raw,
	}
}

func objectOrNil(v *Value) *Value {
	if v != nil && v.Kind == KindObject {
		return v
	}
	return nil
}

func arrayOrNil(v *Value) *Value {
	if v != nil && v.Kind == KindArray {
		return v
	}
	return nil
}

func firstString(v *Value, keys ...string) string {
	for _, key := range keys {
		if s, ok := v.Get(key).StringVal(); ok && s != "" {
			return s
		}
	}
	return ""
}

func strPtr(v *Value) *string {
	if s, ok := v.StringVal(); ok {
		return &s
	}
	return nil
}

func intPtr(v *Value) *int64 {
	if n, ok := v.IntVal(); ok {
		return &n
	}
	return nil
}

func ptr(s string) *string {
	return &s
}

func orNull(v *Value) *Value {
	if v == nil {
		return Null()
	}
	return v
}
