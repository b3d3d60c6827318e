package gemini

// Config contains Gemini provider configuration. The vendor is enabled
// iff APIKey is present.
type Config struct {
	APIKey        string `env:"GEMINI_API_KEY"`
	BaseURL       string `env:"GEMINI_BASE_URL"        envDefault:"https://generativelanguage.googleapis.com"`
	APIVersion    string `env:"GEMINI_API_VERSION"     envDefault:"v1beta"`
	Model         string `env:"GEMINI_MODEL"           envDefault:"gemini-2.0-flash"`
	FallbackModel string `env:"GEMINI_FALLBACK_MODEL"  envDefault:"gemini-1.5-flash"`
	Timeout       int    `env:"GEMINI_TIMEOUT"         envDefault:"60"`
}
