package version

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}