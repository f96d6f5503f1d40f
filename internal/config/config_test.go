package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhitelist(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
		{
			name: "comma separated",
			raw:  "example.com, vuln.test ,10.0.0.1",
			want: []string{"example.com", "vuln.test", "10.0.0.1"},
		},
		{
			name: "json list",
			raw:  `["example.com","vuln.test"]`,
			want: []string{"example.com", "vuln.test"},
		},
		{
			name: "broken json falls back to csv",
			raw:  `[example.com`,
			want: []string{"[example.com"},
		},
		{
			name: "trailing commas ignored",
			raw:  "a.com,,",
			want: []string{"a.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseWhitelist(tt.raw))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.EqualValues(t, 3, cfg.ScanMaxTasks)
	assert.EqualValues(t, 5, cfg.ScanMaxConcurrency)
	assert.Equal(t, 3, cfg.ScanMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 8080, cfg.MITMProxyPort)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIAPIBase)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SCAN_TIMEOUT", "not-a-number")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SCAN_TIMEOUT", "-5")
	_, err = Load()
	assert.Error(t, err)
}

func TestInWhitelist(t *testing.T) {
	cfg := &Config{TargetWhitelist: []string{"example.com"}}

	assert.True(t, cfg.InWhitelist("example.com"))
	assert.True(t, cfg.InWhitelist("api.example.com"))
	// Подстрочное совпадение намеренно нестрогое
	assert.True(t, cfg.InWhitelist("evilexample.com.attacker"))
	assert.False(t, cfg.InWhitelist("other.org"))

	empty := &Config{}
	assert.False(t, empty.InWhitelist("example.com"))
}
