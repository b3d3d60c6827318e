package anthropic

// Config contains Anthropic provider configuration. The vendor is
// enabled iff APIKey is present.
type Config struct {
	APIKey        string `env:"ANTHROPIC_API_KEY"`
	BaseURL       string `env:"ANTHROPIC_BASE_URL"       envDefault:"https://api.anthropic.com"`
	Model         string `env:"ANTHROPIC_MODEL"          envDefault:"claude-sonnet-4-5-20250929"`
	FallbackModel string `env:"ANTHROPIC_FALLBACK_MODEL" envDefault:"claude-3-5-haiku-20241022"`
	Timeout       int    `env:"ANTHROPIC_TIMEOUT"        envDefault:"60"`
}
