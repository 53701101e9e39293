package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DIR", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("FFMPEG_PATHS", "")
	t.Setenv("TRANSCRIBE_LANGUAGE", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("S3_ENDPOINT", "")
	t.Setenv("PIPELINE_TIMEOUT", "")
	t.Setenv("CHUNK_WORDS", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("DB_PATH", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "./storage", cfg.Storage.Dir)
	assert.Equal(t, filepath.Join("storage", "videos"), cfg.Storage.VideosDir())
	assert.Equal(t, filepath.Join("./storage", "lectures.db"), cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "llama3.2", cfg.Ollama.Model)
	assert.Equal(t, 9*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkWords)
	assert.Equal(t, "ffmpeg", cfg.Whisper.FFmpegPaths[0])
	assert.Equal(t, "tiny.en", cfg.Whisper.DirectModel())
	assert.False(t, cfg.Hosted.Enabled())
	assert.False(t, cfg.ObjectStore.Enabled())
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DIR", "/data")
	t.Setenv("PIPELINE_TIMEOUT", "90")
	t.Setenv("TRANSCRIBE_LANGUAGE", "de")
	t.Setenv("FFMPEG_PATHS", "/a/ffmpeg:/b/ffmpeg")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_PATH", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/lectures.db", cfg.Database.Path)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, "tiny", cfg.Whisper.DirectModel())
	assert.Equal(t, []string{"/a/ffmpeg", "/b/ffmpeg"}, cfg.Whisper.FFmpegPaths)
	assert.True(t, cfg.Hosted.Enabled())
}

func TestNewFromEnv_OptionWins(t *testing.T) {
	t.Setenv("STORAGE_DIR", "/env")

	cfg, err := NewFromEnv(WithStorageDir("/opt"))
	require.NoError(t, err)
	assert.Equal(t, "/opt", cfg.Storage.Dir)
}

func TestNewFromEnv_Invalid(t *testing.T) {
	t.Run("mysql without dsn", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		t.Setenv("DB_DSN", "")
		_, err := NewFromEnv()
		require.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		_, err := NewFromEnv()
		require.Error(t, err)
	})
	t.Run("bad cron", func(t *testing.T) {
		t.Setenv("MAINTENANCE_CRON", "bad cron")
		_, err := NewFromEnv()
		require.Error(t, err)
	})
	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("WORKER_COUNT", "0")
		_, err := NewFromEnv()
		require.Error(t, err)
	})
}
