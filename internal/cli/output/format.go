package output

import (
	"fmt"
	"strings"
)

// FormatHeader returns a markdown heading.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock fences content with an optional language tag.
func FormatCodeBlock(lang, content string) string {
	return "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```"
}
