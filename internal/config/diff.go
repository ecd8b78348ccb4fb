package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: provider or
// server rewiring still requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DiarizeChanged is true when any diarization threshold changed. The
	// new values apply to the next recording; in-flight runs keep theirs.
	DiarizeChanged bool

	// SummaryChanged is true when the summariser prompts or budget changed.
	SummaryChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Diarize != new.Diarize {
		d.DiarizeChanged = true
	}

	if old.Summary != new.Summary {
		d.SummaryChanged = true
	}

	return d
}
