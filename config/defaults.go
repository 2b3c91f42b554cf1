package config

const (
	defaultLibraryPath = "~/.local/share/leadsheet/library.db"
	defaultBind        = "127.0.0.1:8080"
	defaultLogLevel    = "info"
)

func Default() Config {
	return Config{
		Parser: Parser{
			Strict:  false,
			Workers: 4,
		},
		Library: Library{
			Path: defaultLibraryPath,
		},
		Server: Server{
			Bind: defaultBind,
		},
		MIDI: MIDI{
			Octave:   4,
			BPM:      120,
			Velocity: 90,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: "auto",
		},
	}
}
