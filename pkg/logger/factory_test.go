package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgtask/pkg/logger"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json at info by default", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))

		log.Debug("hidden")
		assert.Zero(t, buf.Len())

		log.Info("shown", slog.String("k", "v"))
		rec := decodeRecord(t, buf)
		assert.Equal(t, "shown", rec["msg"])
		assert.Equal(t, "v", rec["k"])
	})

	t.Run("text format and level", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText), logger.WithLevel(slog.LevelDebug))

		log.Debug("details")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "msg=details")
	})

	t.Run("unknown format is ignored", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat("xml"))

		log.Info("still json")
		assert.Equal(t, "still json", decodeRecord(t, buf)["msg"])
	})

	t.Run("static attributes and source", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(logger.Component("test")), logger.WithSource(true))

		log.Info("hello")
		rec := decodeRecord(t, buf)
		assert.Equal(t, "test", rec["component"])
		assert.Contains(t, rec, slog.SourceKey)
	})

	t.Run("context extractors", func(t *testing.T) {
		t.Parallel()

		type tenantKey struct{}
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			v, ok := ctx.Value(tenantKey{}).(string)
			return slog.String("tenant", v), ok
		}))

		log.InfoContext(context.WithValue(context.Background(), tenantKey{}, "acme"), "scoped")
		assert.Equal(t, "acme", decodeRecord(t, buf)["tenant"])
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		env       string
		wantEnv   string
		wantDebug bool
		wantJSON  bool
	}{
		{env: "development", wantEnv: logger.EnvDevelopment, wantDebug: true},
		{env: "prod", wantEnv: logger.EnvProduction, wantJSON: true},
		{env: "staging", wantEnv: logger.EnvStaging, wantJSON: true},
		{env: "anything", wantEnv: logger.EnvDevelopment, wantDebug: true},
	}

	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			log := logger.New(logger.WithOutput(buf), logger.WithEnvironment(tc.env, "pgtaskd"))

			log.Debug("probe")
			if !tc.wantDebug {
				assert.Zero(t, buf.Len())
				log.Info("probe")
			}

			out := buf.String()
			assert.Contains(t, out, "pgtaskd")
			assert.Contains(t, out, tc.wantEnv)
			assert.Equal(t, tc.wantJSON, strings.HasPrefix(out, "{"))
		})
	}

	t.Run("empty service keeps defaults", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithDevelopment(""))

		log.Debug("hidden")
		assert.Zero(t, buf.Len())
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	warn := slog.LevelWarn
	buf := &bytes.Buffer{}
	log := logger.NewFromConfig(logger.Config{
		Service: "pgtaskd",
		Env:     logger.EnvDevelopment,
		Level:   &warn,
		Format:  logger.FormatJSON,
	}, logger.WithOutput(buf))

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	rec := decodeRecord(t, buf)
	assert.Equal(t, "pgtaskd", rec["service"])
	assert.Equal(t, logger.EnvDevelopment, rec["env"])
}

func TestFormat_UnmarshalText(t *testing.T) {
	t.Parallel()

	var f logger.Format
	require.NoError(t, f.UnmarshalText([]byte("text")))
	assert.Equal(t, logger.FormatText, f)
	assert.Error(t, f.UnmarshalText([]byte("yaml")))
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, slog.Attr{}, logger.TaskID(nil))
	assert.Equal(t, slog.Attr{}, logger.WorkerID(nil))
	assert.Equal(t, slog.Attr{}, logger.RequestID(""))

	assert.Equal(t, "error", logger.Error(assert.AnError).Key)
	assert.Equal(t, slog.String("task_type", "mail"), logger.TaskType("mail"))
	assert.Equal(t, slog.String("discriminator", "echo"), logger.Discriminator("echo"))
	assert.Equal(t, slog.Int("retry_count", 2), logger.RetryCount(2))
	assert.Equal(t, slog.Float64("duration_ms", 1500), logger.Duration(1500*time.Millisecond))
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	log := logger.Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))

	ctx := logger.ContextWithAttrs(context.Background(), logger.TaskID("t-9"))
	slog.InfoContext(ctx, "via default")
	assert.Equal(t, "t-9", decodeRecord(t, buf)["task_id"])
}
