package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format selects the record encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// UnmarshalText accepts "json" or "text", so a bad LOG_FORMAT fails config
// parsing instead of silently falling back.
func (f *Format) UnmarshalText(b []byte) error {
	switch v := Format(b); v {
	case FormatJSON, FormatText:
		*f = v
		return nil
	default:
		return fmt.Errorf("invalid log format %q: want %q or %q", v, FormatJSON, FormatText)
	}
}

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the environment-driven logger configuration used by pgtaskd.
type Config struct {
	Service string `env:"LOG_SERVICE" envDefault:"pgtask"`
	// Env picks level and format defaults: text/debug in development,
	// json/info otherwise.
	Env string `env:"APP_ENV" envDefault:"development"`
	// Level and Format override the Env defaults when set.
	Level     *slog.Level `env:"LOG_LEVEL"`
	Format    Format      `env:"LOG_FORMAT"`
	AddSource bool        `env:"LOG_ADD_SOURCE"`
}

// NewFromConfig builds a logger from cfg, then applies opts.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	configOpts := []Option{WithEnvironment(cfg.Env, cfg.Service), WithSource(cfg.AddSource)}
	if cfg.Level != nil {
		configOpts = append(configOpts, WithLevel(*cfg.Level))
	}
	if cfg.Format != "" {
		configOpts = append(configOpts, WithFormat(cfg.Format))
	}
	return New(append(configOpts, opts...)...)
}

// Option configures New.
type Option func(*options)

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	addSource  bool
	attrs      []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat sets the encoding. Unknown formats are ignored.
func WithFormat(f Format) Option {
	return func(o *options) {
		if f == FormatJSON || f == FormatText {
			o.format = f
		}
	}
}

// WithOutput redirects records to w. Nil keeps stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithSource adds the calling file and line to each record.
func WithSource(enabled bool) Option {
	return func(o *options) { o.addSource = enabled }
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers extractors run for every record logged
// with a context. Nil extractors are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) { o.extractors = append(o.extractors, extractors...) }
}

// WithEnvironment applies the defaults for env and tags records with
// "service" and "env". "prod" and "stage" are accepted as aliases; anything
// else is treated as development. An empty service leaves the logger as is.
func WithEnvironment(env, service string) Option {
	switch env {
	case EnvProduction, "prod":
		return withEnv(EnvProduction, service, slog.LevelInfo, FormatJSON)
	case EnvStaging, "stage":
		return withEnv(EnvStaging, service, slog.LevelInfo, FormatJSON)
	default:
		return withEnv(EnvDevelopment, service, slog.LevelDebug, FormatText)
	}
}

// WithDevelopment is WithEnvironment(EnvDevelopment, service).
func WithDevelopment(service string) Option {
	return WithEnvironment(EnvDevelopment, service)
}

// WithProduction is WithEnvironment(EnvProduction, service).
func WithProduction(service string) Option {
	return WithEnvironment(EnvProduction, service)
}

func withEnv(env, service string, level slog.Level, format Format) Option {
	return func(o *options) {
		if service == "" {
			return
		}
		o.level = level
		o.format = format
		o.attrs = append(o.attrs, slog.String("service", service), slog.String("env", env))
	}
}

// New builds a JSON logger at info level on stdout unless opts say otherwise.
// Its handler adds context attributes, see ContextWithAttrs.
func New(opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, format: FormatJSON, output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: o.level, AddSource: o.addSource}

	var handler slog.Handler
	if o.format == FormatText {
		handler = slog.NewTextHandler(o.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	}
	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}

	return slog.New(NewContextHandler(handler, o.extractors...))
}

// SetAsDefault installs l as the slog default, so package-level slog calls
// inside tasks carry the same handler and context attributes.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
