package dispatch

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompactResponsePreservesUnknownTopLevelFields(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"hello   world"}],"isError":true,"_meta":{"foo":"bar"}}`)

	got, err := compactResponse(raw)
	if err != nil {
		t.Fatalf("compactResponse: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("decoding result: %v", err)
	}

	var isError bool
	if err := json.Unmarshal(decoded["isError"], &isError); err != nil {
		t.Fatalf("decoding isError: %v", err)
	}
	if !isError {
		t.Error("expected isError=true to survive compaction")
	}
	if _, ok := decoded["_meta"]; !ok {
		t.Errorf("expected unknown top-level field _meta to survive compaction, got %s", got)
	}
}

func TestCompactResponseCollapsesWhitespaceInTextItems(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"line1\n\n\n\nline2   spaced"}]}`)

	got, err := compactResponse(raw)
	if err != nil {
		t.Fatalf("compactResponse: %v", err)
	}

	var decoded struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(decoded.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(decoded.Content))
	}
	if decoded.Content[0].Text != "line1\n\nline2 spaced" {
		t.Errorf("unexpected compacted text: %q", decoded.Content[0].Text)
	}
}

func TestCompactResponsePreservesUnknownContentItemFields(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"image","data":"base64blob","mimeType":"image/png"}]}`)

	got, err := compactResponse(raw)
	if err != nil {
		t.Fatalf("compactResponse: %v", err)
	}

	var decoded struct {
		Content []map[string]any `json:"content"`
	}
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if decoded.Content[0]["mimeType"] != "image/png" {
		t.Errorf("expected mimeType to survive compaction untouched, got %+v", decoded.Content[0])
	}
}

func TestCompactResponseTruncatesOversized(t *testing.T) {
	huge := strings.Repeat("a", maxResponseBytes+1000)
	raw := json.RawMessage(`{"content":[{"type":"text","text":"` + huge + `"}]}`)

	got, err := compactResponse(raw)
	if err != nil {
		t.Fatalf("compactResponse: %v", err)
	}
	if len(got) > maxResponseBytes+500 {
		t.Errorf("expected truncated output near the cap, got %d bytes", len(got))
	}
	if !strings.Contains(string(got), "truncated") {
		t.Errorf("expected truncation banner, got %s", got[:200])
	}
}

func TestCompactResponsePassesThroughNonContentShape(t *testing.T) {
	raw := json.RawMessage(`{"foo":"bar"}`)

	got, err := compactResponse(raw)
	if err != nil {
		t.Fatalf("compactResponse: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("expected pass-through, got %s", got)
	}
}
