package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/oleg121203/atlas-core/llm"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIProvider speaks the hosted OpenAI chat-completions API. It shares
// the wire format with OllamaProvider through embedding; only the default
// base URL and the auth headers differ. OpenRouter works through the same
// provider by pointing the endpoint URL at it.
type OpenAIProvider struct {
	OllamaProvider
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL resolves the chat-completions endpoint for the configured base.
// A base that already ends in /chat/completions is used as-is so endpoint
// configs can pin the full path.
func (o *OpenAIProvider) BuildURL(baseURL, _ string) string {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// SetHeaders attaches the bearer token from OPENAI_API_KEY, plus the
// attribution headers OpenRouter asks for when its env vars are set.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}
