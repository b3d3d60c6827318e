package openai

// Config contains OpenAI provider configuration. The vendor is enabled
// iff APIKey is present.
type Config struct {
	APIKey        string `env:"OPENAI_API_KEY"`
	BaseURL       string `env:"OPENAI_BASE_URL"        envDefault:"https://api.openai.com/v1"`
	Model         string `env:"OPENAI_MODEL"           envDefault:"gpt-4o"`
	FallbackModel string `env:"OPENAI_FALLBACK_MODEL"  envDefault:"gpt-4o-mini"`
	Timeout       int    `env:"OPENAI_TIMEOUT"         envDefault:"60"`
}
