// Package version carries build metadata for the relay binaries.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rafi-haque/Secure-Chat/internal/version.Version=1.0.0 \
//	                   -X github.com/rafi-haque/Secure-Chat/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rafi-haque/Secure-Chat/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "<version> (<commit>) built <time>".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies relay tooling in outbound HTTP and WebSocket requests.
func UserAgent(component string) string {
	return "secure-chat-" + component + "/" + Version
}

// Info is the build metadata reported by the health endpoint.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_time": BuildTime,
	}
}
