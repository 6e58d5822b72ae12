package chat

import (
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
	"github.com/entrepeneur4lyf/spark/internal/llm"
)

// buildTurns converts prior history plus the new input into completion
// turns. Placeholders still loading are skipped.
func buildTurns(history []domain.Message, input domain.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(history)+1)
	for _, m := range history {
		if m.IsLoading {
			continue
		}
		turns = append(turns, messageTurn(m))
	}
	return append(turns, messageTurn(input))
}

func messageTurn(m domain.Message) llm.Turn {
	t := llm.Turn{Role: m.Role, Parts: []llm.Part{{Text: m.Text}}}
	if m.Image == "" {
		return t
	}
	if img, err := imagegen.ParseDataURI(m.Image); err == nil {
		t.Parts = append(t.Parts, llm.Part{InlineData: &llm.InlineData{MIMEType: img.MIMEType, Data: img.Data}})
	}
	return t
}
