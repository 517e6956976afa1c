package domain

// SystemConfig is the singleton record anchoring the bot's live platform
// state: where tickets are opened from and where operational notices go.
// Refreshed whenever the creation container or pools are (re)created.
type SystemConfig struct {
	CreationContainerID string
	InfoContainerID     string
	MainMessageID       string
}

// Configured reports whether first-time setup has completed.
func (c *SystemConfig) Configured() bool {
	return c != nil && c.CreationContainerID != ""
}
