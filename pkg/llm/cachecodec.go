package llm

import "encoding/json"

// cachedResponse is the on-the-wire cache representation; kept separate
// from Response so cache format changes don't ripple through call sites.
type cachedResponse struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

func encodeCachedResponse(r Response) string {
	raw, _ := json.Marshal(cachedResponse{
		Content:          r.Content,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
		Model:            r.Model,
	})
	return string(raw)
}

func decodeCachedResponse(raw string) (Response, error) {
	var c cachedResponse
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Response{}, err
	}
	return Response{
		Content:          c.Content,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		TotalTokens:      c.TotalTokens,
		Model:            c.Model,
	}, nil
}
