package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embeddings.Mode == "" {
		cfg.Embeddings.Mode = "auto"
	}
	if cfg.Related.Limit == 0 {
		cfg.Related.Limit = 5
	}
	if cfg.Related.Threshold == nil {
		th := 0.65
		cfg.Related.Threshold = &th
	}
	if cfg.Related.Heading == "" {
		cfg.Related.Heading = "## Related Notes"
	}
	if cfg.Related.UsePathLinks == nil {
		t := true
		cfg.Related.UsePathLinks = &t
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kanren/data/db/sync.db"
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
}
