package rar

// Version information for the ordering-violation tracker.
const (
	// Version is the current release of the queue model.
	Version = "0.1.0"
)

// Info describes the queue model build.
type Info struct {
	// Version is the release string.
	Version string

	// Hazard is the hazard class the queue detects.
	Hazard string
}

// GetInfo returns information about the queue model.
func GetInfo() Info {
	return Info{
		Version: Version,
		Hazard:  "load-load ordering (read-after-read)",
	}
}
