package engine

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string
	// TOML render config. A missing file runs with the defaults.
	ConfigPath string
	// Reload the render config when its file changes.
	WatchConfig bool
	// Workers building game frames. Defaults to 1.
	Workers int
	// Stop after this many frames. Zero runs until quit.
	MaxFrames uint64
}
