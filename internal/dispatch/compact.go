package dispatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxResponseBytes = 50_000
const truncatedBodyBytes = 49_900

var (
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
	excessWhitespace = regexp.MustCompile(`[ \t]{2,}`)
)

// compactResponse applies whitespace/newline compaction to every text
// content item in raw, then enforces the overall size cap. raw is expected
// to be a tool result object with a "content" array; everything outside
// that array (isError, and any other top-level field an upstream attaches)
// is preserved untouched. If raw isn't shaped that way, it is passed
// through as-is (still subject to the size cap).
func compactResponse(raw json.RawMessage) (json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err == nil {
		if contentRaw, ok := top["content"]; ok {
			var items []map[string]json.RawMessage
			if err := json.Unmarshal(contentRaw, &items); err == nil {
				for _, item := range items {
					compactItemText(item)
				}
				compactedContent, err := json.Marshal(items)
				if err != nil {
					return nil, err
				}
				top["content"] = compactedContent

				compacted, err := json.Marshal(top)
				if err != nil {
					return nil, err
				}
				raw = compacted
			}
		}
	}

	return truncateIfOversized(raw), nil
}

// compactItemText rewrites item["text"] in place when item is a text content
// entry, leaving every other key (including unknown ones a future upstream
// adds) exactly as it arrived.
func compactItemText(item map[string]json.RawMessage) {
	var kind string
	if err := json.Unmarshal(item["type"], &kind); err != nil || kind != "text" {
		return
	}
	var text string
	if err := json.Unmarshal(item["text"], &text); err != nil {
		return
	}
	compacted, err := json.Marshal(compactText(text))
	if err != nil {
		return
	}
	item["text"] = compacted
}

// compactText collapses runs of 3+ newlines to two, runs of 2+ horizontal
// whitespace to one space, and trims the ends.
func compactText(text string) string {
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = excessWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateIfOversized replaces raw with a single text-content envelope when
// its serialized length exceeds maxResponseBytes.
func truncateIfOversized(raw json.RawMessage) json.RawMessage {
	if len(raw) <= maxResponseBytes {
		return raw
	}

	head := raw
	if len(head) > truncatedBodyBytes {
		head = head[:truncatedBodyBytes]
	}

	banner := fmt.Sprintf("[Response truncated - original size: %d bytes]\n%s\n[... truncated]", len(raw), head)
	envelope := struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{}
	envelope.Content = append(envelope.Content, struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "text", Text: banner})

	marshaled, err := json.Marshal(envelope)
	if err != nil {
		// Fall back to a hard byte truncation if even the banner can't be
		// marshaled (should not happen with a plain string payload).
		return raw[:maxResponseBytes]
	}
	return marshaled
}
