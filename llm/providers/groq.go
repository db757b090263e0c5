package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/oleg121203/atlas-core/llm"
)

// GroqProvider implements the Groq API, which speaks the OpenAI wire format
// but uses its own base URL and API key.
type GroqProvider struct {
	OllamaProvider // Embed for shared request/response format
}

func init() {
	llm.RegisterProvider(&GroqProvider{})
}

// Name returns the provider identifier.
func (g *GroqProvider) Name() string {
	return "groq"
}

// BuildURL constructs the Groq chat completions endpoint.
func (g *GroqProvider) BuildURL(baseURL, _ string) string {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// SetHeaders adds Groq authentication headers.
func (g *GroqProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("GROQ_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
