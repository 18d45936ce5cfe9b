package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "noop", cfg.Messaging.Driver)
	require.Equal(t, "noop", cfg.Cache.Driver)
	require.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	require.Equal(t, 3, cfg.Admission.MaxRetries)
	require.Equal(t, 3*time.Second, cfg.Admission.LockTimeout)
	require.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "invalid http port", env: map[string]string{"HTTP_PORT": "0"}, wantErr: true},
		{name: "unknown database driver", env: map[string]string{"DB_DRIVER": "oracle"}, wantErr: true},
		{name: "unknown messaging driver", env: map[string]string{"MESSAGING_DRIVER": "nats"}, wantErr: true},
		{name: "negative retries", env: map[string]string{"ADMISSION_MAX_RETRIES": "-1"}, wantErr: true},
		{name: "sampling out of range", env: map[string]string{"OBS_TRACE_SAMPLING": "1.5"}, wantErr: true},
		{name: "rabbitmq driver", env: map[string]string{"MESSAGING_DRIVER": "rabbitmq"}, wantErr: false},
		{name: "sqlite driver", env: map[string]string{"DB_DRIVER": "sqlite", "DB_WRITER_DSN": "file:test.db"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CACHE_ENABLED", "false")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew_PrometheusPathGetsLeadingSlash(t *testing.T) {
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("OBS_PROMETHEUS_PATH", "metrics")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}
