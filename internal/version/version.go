package version

// Build information set by ldflags
var (
	Version = "dev"     // Set by goreleaser: -X github.com/chuang453/batch-process/internal/version.Version={{.Version}}
	Commit  = "unknown" // Set by goreleaser: -X github.com/chuang453/batch-process/internal/version.Commit={{.Commit}}
	Date    = "unknown" // Set by goreleaser: -X github.com/chuang453/batch-process/internal/version.Date={{.Date}}
)
