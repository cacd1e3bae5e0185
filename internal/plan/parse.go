package plan

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxSubtaskRunes = 120

var (
	// numbering and bullets at the start of a line: "1.", "2)", "-", "*", "•"
	listMarker = regexp.MustCompile(`^\s*(?:\d+[\.\)]|[-*•])\s*`)
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// ParseSubtasks turns raw model output into at most limit short subtasks. The
// text is read as a JSON array when possible, otherwise line by line. An
// empty result means nothing usable was found.
func ParseSubtasks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if text == "" {
		return nil
	}

	items, ok := parseJSONArray(text)
	if !ok {
		// best effort: the array may be wrapped in prose
		if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
			items, ok = parseJSONArray(text[start : end+1])
		}
	}
	if !ok {
		items = splitLines(text)
	}
	return clean(items, limit)
}

func parseJSONArray(text string) ([]string, bool) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	items := make([]string, 0, len(raw))
	for _, v := range raw {
		switch item := v.(type) {
		case string:
			items = append(items, item)
		case map[string]interface{}:
			for _, key := range []string{"title", "task", "subtask", "step", "name"} {
				if s, ok := item[key].(string); ok {
					items = append(items, s)
					break
				}
			}
		}
	}
	return items, true
}

func splitLines(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.Trim(line, "\"',[] ")
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func clean(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > maxSubtaskRunes {
			item = strings.TrimSpace(string([]rune(item)[:maxSubtaskRunes-3])) + "..."
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
