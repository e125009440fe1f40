package webcollect

// Logger records outbound requests and processor responses.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]any) {}
func (nopLogger) Error(string, map[string]any) {}
