package openai

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestContentPart_WireFormat(t *testing.T) {
	tests := []struct {
		name string
		part ContentPart
		want map[string]string
	}{
		{
			name: "text",
			part: TextPart("hello"),
			want: map[string]string{"type": "input_text", "text": "hello"},
		},
		{
			name: "embedded text renders as input_text",
			part: EmbeddedTextPart("file contents"),
			want: map[string]string{"type": "input_text", "text": "file contents"},
		},
		{
			name: "image with detail",
			part: ImagePart("https://cdn.example/x.png", "low"),
			want: map[string]string{"type": "input_image", "image_url": "https://cdn.example/x.png", "detail": "low"},
		},
		{
			name: "image defaults detail to auto",
			part: ImagePart("https://cdn.example/x.png", ""),
			want: map[string]string{"type": "input_image", "image_url": "https://cdn.example/x.png", "detail": "auto"},
		},
		{
			name: "file",
			part: FilePart("https://cdn.example/doc.pdf"),
			want: map[string]string{"type": "input_file", "file_url": "https://cdn.example/doc.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.part)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestInputTurn_StringContent(t *testing.T) {
	data, err := json.Marshal(InputTurn{Role: RoleAssistant, Text: "hi there"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"content":"hi there"`) {
		t.Errorf("turn = %s, want plain string content", data)
	}
	if !strings.Contains(string(data), `"role":"assistant"`) {
		t.Errorf("turn = %s, want assistant role", data)
	}
}

func TestInputTurn_PartsContent(t *testing.T) {
	turn := InputTurn{
		Role:  RoleUser,
		Parts: []ContentPart{TextPart("a"), ImagePart("u", "")},
	}
	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"input_image"`) {
		t.Errorf("turn = %s, want parts array", data)
	}
}

func TestTool_WireFormat(t *testing.T) {
	tool := Tool{
		Name:        "get_messages",
		Description: "Fetch older messages",
		Parameters: map[string]any{
			"type": "object",
		},
	}
	data, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	json.Unmarshal(data, &got)
	if got["type"] != "function" {
		t.Errorf("type = %v", got["type"])
	}
	if got["strict"] != true {
		t.Error("tools must be declared strict")
	}
	if got["name"] != "get_messages" {
		t.Errorf("name = %v", got["name"])
	}
}
