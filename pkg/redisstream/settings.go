package redisstream

// Settings selects the transport of the update bus. When Enabled is false the
// bus stays in-process.
type Settings struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
	Group    string `yaml:"group" validate:"required_if=Enabled true"`
	Consumer string `yaml:"consumer" validate:"required_if=Enabled true"`
}

func DefaultSettings() Settings {
	return Settings{
		Addr:     "localhost:6379",
		Group:    "chat-ui",
		Consumer: "ui-1",
	}
}
