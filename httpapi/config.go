package httpapi

// Config defines the HTTP API settings.
type Config struct {
	Addr string
	// BaseURL is the externally visible root. Its path becomes the mount prefix.
	BaseURL string
}
