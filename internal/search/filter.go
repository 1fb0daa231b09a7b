// Package search filters a session transcript by a live query string.
package search

import (
	"strings"

	"github.com/tOgg1/livedesk/internal/models"
)

// Filter returns the messages whose content or sender name contains query,
// ignoring case. A blank query returns every message. The input slice is never
// modified and the result is always a new slice in the original order.
func Filter(messages []models.Message, query string) []models.Message {
	needle := normalize(query)
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if needle == "" || matches(msg, needle) {
			out = append(out, msg)
		}
	}
	return out
}

// Matches reports whether msg satisfies query.
func Matches(msg models.Message, query string) bool {
	needle := normalize(query)
	return needle == "" || matches(msg, needle)
}

func matches(msg models.Message, needle string) bool {
	return strings.Contains(strings.ToLower(msg.Content), needle) ||
		strings.Contains(strings.ToLower(msg.SenderName), needle)
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
