package backend

// OllamaRequest represents the request body for Ollama API
type OllamaRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  OllamaOptions       `json:"options"`
}

// OllamaOptions carries sampling parameters
type OllamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// OllamaResponse holds the parts of a chat API response that are read
type OllamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel is one installed model from /api/tags
type OllamaModel struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}
