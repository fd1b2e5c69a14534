package common

// Overridden at build time with -ldflags "-X ...common.Version=... -X ...common.GitCommit=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
)
