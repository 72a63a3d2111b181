package memory

import "strings"

// ResponseCandidate is an upstream value that may carry the generated
// assistant reply. Implementations are TextResponse, ContentResponse and
// ChatCompletion.
type ResponseCandidate interface {
	responseText() string
}

// TextResponse is a plain generated string
type TextResponse string

func (x TextResponse) responseText() string { return string(x) }

// ContentResponse is a response object carrying a content field
type ContentResponse struct {
	Content string `json:"content"`
}

func (x ContentResponse) responseText() string { return x.Content }

// ChatCompletion is a chat-completion shaped response. Only the first
// choice is considered.
type ChatCompletion struct {
	Choices []ChatChoice `json:"choices"`
}

type ChatChoice struct {
	Message ChatMessage `json:"message"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (x ChatCompletion) responseText() string {
	if len(x.Choices) == 0 {
		return ""
	}
	return x.Choices[0].Message.Content
}

// extractResponse returns the text of the last candidate whose text is not
// blank, or an empty string.
func extractResponse(candidates []ResponseCandidate) string {
	var response string
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if text := c.responseText(); strings.TrimSpace(text) != "" {
			response = text
		}
	}
	return response
}
