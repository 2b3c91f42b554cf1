package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateParser(); err != nil {
		return err
	}
	if c.Library.Path == "" {
		return fmt.Errorf("%w: library.path must be set", ErrInvalidConfig)
	}
	if c.Server.Bind == "" {
		return fmt.Errorf("%w: server.bind must be set", ErrInvalidConfig)
	}
	if err := c.validateMIDI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateParser() error {
	if c.Parser.Workers < 1 {
		return fmt.Errorf("%w: parser.workers must be at least 1, got %d", ErrInvalidConfig, c.Parser.Workers)
	}
	return nil
}

func (c *Config) validateMIDI() error {
	if c.MIDI.Octave < 0 || c.MIDI.Octave > 8 {
		return fmt.Errorf("%w: midi.octave must be between 0 and 8, got %d", ErrInvalidConfig, c.MIDI.Octave)
	}
	if c.MIDI.BPM <= 0 {
		return fmt.Errorf("%w: midi.bpm must be positive", ErrInvalidConfig)
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		return fmt.Errorf("%w: midi.velocity must be between 1 and 127, got %d", ErrInvalidConfig, c.MIDI.Velocity)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (want auto, console or json)", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}
