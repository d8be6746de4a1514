// Package openai provides a client for the OpenAI Responses API.
package openai

import (
	"encoding/json"
)

// Role identifies who a conversation turn belongs to.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind discriminates the closed set of content part variants.
type PartKind int

const (
	// PartText is plain text authored in the conversation.
	PartText PartKind = iota
	// PartImage is an image referenced by URL.
	PartImage
	// PartFile is an opaque file referenced by URL, not fetched.
	PartFile
	// PartEmbeddedText is text inlined from a fetched attachment. It is
	// sent to the service the same way as PartText; the distinction
	// exists so classification and assembly stay independently testable.
	PartEmbeddedText
)

// ContentPart is one atomic unit of multi-modal input.
type ContentPart struct {
	Kind   PartKind
	Text   string // PartText, PartEmbeddedText
	URL    string // PartImage, PartFile
	Detail string // PartImage only; empty means "auto"
}

// TextPart builds a plain text part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// ImagePart builds an image reference part.
func ImagePart(url, detail string) ContentPart {
	return ContentPart{Kind: PartImage, URL: url, Detail: detail}
}

// FilePart builds an opaque file reference part.
func FilePart(url string) ContentPart {
	return ContentPart{Kind: PartFile, URL: url}
}

// EmbeddedTextPart builds a part carrying inlined attachment text.
func EmbeddedTextPart(text string) ContentPart {
	return ContentPart{Kind: PartEmbeddedText, Text: text}
}

// MarshalJSON renders the part in Responses API wire format.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartImage:
		detail := p.Detail
		if detail == "" {
			detail = "auto"
		}
		return json.Marshal(map[string]string{
			"type":      "input_image",
			"image_url": p.URL,
			"detail":    detail,
		})
	case PartFile:
		return json.Marshal(map[string]string{
			"type":     "input_file",
			"file_url": p.URL,
		})
	default:
		return json.Marshal(map[string]string{
			"type": "input_text",
			"text": p.Text,
		})
	}
}

// InputTurn is one conversation turn in a request. Content is either the
// plain Text string or the Parts sequence; Parts wins when non-nil.
type InputTurn struct {
	Role  Role
	Text  string
	Parts []ContentPart
}

// MarshalJSON renders the turn in Responses API wire format.
func (t InputTurn) MarshalJSON() ([]byte, error) {
	var content any = t.Text
	if t.Parts != nil {
		content = t.Parts
	}
	return json.Marshal(map[string]any{
		"role":    string(t.Role),
		"content": content,
	})
}

// Tool is a function declaration offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// MarshalJSON renders the tool as a strict function declaration.
func (t Tool) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":        "function",
		"name":        t.Name,
		"description": t.Description,
		"parameters":  t.Parameters,
		"strict":      true,
	})
}

// Request is a Responses API create request.
type Request struct {
	Model        string      `json:"model"`
	Instructions string      `json:"instructions,omitempty"`
	Input        []InputTurn `json:"input"`
	Tools        []Tool      `json:"tools,omitempty"`
}

// TextFormat constrains output to a strict JSON schema (used by Parse).
type TextFormat struct {
	Name   string
	Schema map[string]any
}

// apiError is the error object embedded in failed responses.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OutputContent is one content block of a message output item.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// OutputItem is one entry of a response's output sequence. Message items
// carry Content; function_call items carry Name, Arguments, and CallID.
type OutputItem struct {
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
}

// FunctionCall is a tool invocation requested by the model. Arguments is
// the raw JSON string as sent on the wire.
type FunctionCall struct {
	Name      string
	Arguments string
	CallID    string
}

// Usage reports token consumption for a response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a Responses API result.
type Response struct {
	ID     string       `json:"id"`
	Model  string       `json:"model"`
	Status string       `json:"status,omitempty"`
	Output []OutputItem `json:"output"`
	Usage  Usage        `json:"usage"`
	Error  *apiError    `json:"error,omitempty"`
}

// OutputText concatenates the text of all message output items.
func (r *Response) OutputText() string {
	var out string
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				out += c.Text
			}
		}
	}
	return out
}

// FunctionCalls returns all function_call output items, in order.
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, item := range r.Output {
		if item.Type != "function_call" {
			continue
		}
		calls = append(calls, FunctionCall{
			Name:      item.Name,
			Arguments: item.Arguments,
			CallID:    item.CallID,
		})
	}
	return calls
}
