package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOutput receives the JSON log stream. Serve logs to stdout; the MCP
	// command logs to stderr because stdout carries the protocol.
	logOutput io.Writer
	// out receives command output such as a rendered note.
	out io.Writer
	// width is the terminal width used when rendering a note.
	width int
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the application log.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithWidth sets the terminal width for rendered notes.
func WithWidth(n int) Option {
	return func(a *application) {
		a.width = n
	}
}
