package service

import (
	"fmt"
	"strings"

	"fiction-server/internal/domain"
)

// continuationPromptTemplate: история, затем просьба продвинуть сюжет и дать три варианта A/B/C.
const continuationPromptTemplate = `%s

Please generate:
1. A new advancement of the plot (within 200 characters).
2. The next three choices (A/B/C), each choice starting with its option label.`

// endingPromptTemplate: номер шага и история, затем просьба о финальном отрывке без вариантов.
const endingPromptTemplate = `You are an interactive fiction engine. The story has now reached choice number %d.

Current plot (summary):
%s

Write the ending passage of this story, resolving every character relationship and conflict, keeping the style consistent. Do not generate any more choices.`

// HistoryText склеивает тексты записей журнала через перевод строки в исходном порядке.
// Выборы пользователя тоже входят в историю.
func HistoryText(log []domain.LogEntry) string {
	parts := make([]string, 0, len(log))
	for _, entry := range log {
		switch entry.Kind {
		case domain.EntryBackground, domain.EntryStory, domain.EntryChoice:
			parts = append(parts, entry.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func continuationPrompt(history string) string {
	return fmt.Sprintf(continuationPromptTemplate, history)
}

func endingPrompt(steps int, history string) string {
	return fmt.Sprintf(endingPromptTemplate, steps, history)
}
