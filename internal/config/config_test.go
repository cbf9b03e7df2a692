package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "Asia/Yekaterinburg", cfg.Timezone)
	assert.Equal(t, "0 8 * * *", cfg.ReportSchedule)
	assert.Equal(t, []string{"0 9 * * *", "0 20 * * *"}, cfg.MotivationSchedules)
	assert.Empty(t, cfg.AllowedChatIDs)
	assert.True(t, cfg.IsAllowedChat(-100500))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "-1001, -1002,oops")
	t.Setenv("STORAGE_BACKEND", "Supabase")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")
	t.Setenv("MOTIVATION_SCHEDULES", "30 9 * * 1-5; 0 20 * * *")
	t.Setenv("TELEGRAM_TIMEOUT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{-1001, -1002}, cfg.AllowedChatIDs)
	assert.Equal(t, BackendSupabase, cfg.StorageBackend)
	assert.Equal(t, []string{"30 9 * * 1-5", "0 20 * * *"}, cfg.MotivationSchedules)
	assert.Equal(t, 10, cfg.TelegramTimeout)
	assert.False(t, cfg.IsAllowedChat(-1003))
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing token", map[string]string{}, "TELEGRAM_BOT_TOKEN"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mysql"}, "STORAGE_BACKEND"},
		{"supabase without url", map[string]string{"STORAGE_BACKEND": "supabase"}, "SUPABASE_URL"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Base"}, "TIMEZONE"},
		{"bad schedule", map[string]string{"REPORT_SCHEDULE": "at eight"}, "REPORT_SCHEDULE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
		{"negative timeout", map[string]string{"GEMINI_TIMEOUT": "-1"}, "GEMINI_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			if tt.name != "missing token" {
				t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
