package tlstream

// Version information for tlstream.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/tlstream.GitCommit=$(git rev-parse HEAD)"
const (
	// Name is the application name.
	Name = "tlstream"

	// Description is a short description of the application.
	Description = "Streaming translation endpoint with a fail-open cache"

	// Version is the semantic version of the application.
	Version = "0.2.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/tlstream"
)

// BuildInfo contains build-time information, set via ldflags.
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// FullVersion returns the version string with the short commit, if known.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for HTTP requests.
func UserAgent() string {
	return Name + "/" + FullVersion()
}
