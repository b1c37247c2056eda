package config

// Source records where the effective endpoint came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Endpoint returns the service endpoint and its origin. Precedence is
// flag > FWE_API_BASE > config file > built-in default; an empty flag value
// means the flag was not given.
func (c *Config) Endpoint(flagValue string) (string, Source) {
	if flagValue != "" {
		return flagValue, SourceFlag
	}
	src := c.baseURLSource
	if src == "" {
		src = SourceFile
		if c.API.BaseURL == "" || c.API.BaseURL == DefaultBaseURL {
			src = SourceDefault
		}
	}
	if c.API.BaseURL == "" {
		return DefaultBaseURL, SourceDefault
	}
	return c.API.BaseURL, src
}
