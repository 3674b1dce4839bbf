package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the changed settings that only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs. The log level is applied live; every
// other change is listed in RestartRequired.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, name)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("frontend", old.Frontend != new.Frontend)
	restart("backend", old.Backend.IsEnabled() != new.Backend.IsEnabled() ||
		old.Backend.ListenAddr != new.Backend.ListenAddr ||
		old.Backend.RateLimit != new.Backend.RateLimit)
	restart("providers.llm", !sameEntry(old.Providers.LLM, new.Providers.LLM))
	restart("providers.llm_fallbacks", !sameEntries(old.Providers.LLMFallbacks, new.Providers.LLMFallbacks))
	restart("session", old.Session != new.Session)
	restart("telemetry", old.Telemetry != new.Telemetry)
	return d
}

// sameEntry compares the fields of a provider entry that select and reach
// the provider. Options are not compared.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}

func sameEntries(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameEntry(a[i], b[i]) {
			return false
		}
	}
	return true
}
