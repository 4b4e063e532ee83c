package config

import "github.com/Sumatoshi-tech/poolscope/pkg/replay"

// Input defaults.
const (
	DefaultLogFile = "svn-st-alloc.log"
)

// Summary defaults.
const (
	DefaultFormat   = "text"
	DefaultTolerant = false
)

// Replay defaults.
const (
	DefaultTarget     = "apr"
	DefaultIterations = replay.DefaultIterations
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Metrics defaults.
const (
	DefaultMetricsTextfile = ""
	DefaultOTLPEndpoint    = ""
	DefaultOTLPInsecure    = false
)
