package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"string", `"15m"`, 15 * time.Minute, false},
		{"nanoseconds", `1000000000`, time.Second, false},
		{"bad string", `"fortnight"`, 0, true},
		{"bool", `true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		TTL  Duration `yaml:"ttl"`
		Raw  Duration `yaml:"raw"`
		Long Duration `yaml:"long"`
	}
	err := yaml.Unmarshal([]byte("ttl: 10m\nraw: 2000000000\nlong: 168h\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.TTL.Duration)
	assert.Equal(t, 2*time.Second, cfg.Raw.Duration)
	assert.Equal(t, 7*24*time.Hour, cfg.Long.Duration)
}

func TestDuration_UnmarshalYAML_Invalid(t *testing.T) {
	var cfg struct {
		TTL Duration `yaml:"ttl"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("ttl: soon\n"), &cfg))
	assert.Error(t, yaml.Unmarshal([]byte("ttl: [1, 2]\n"), &cfg))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))

	var back Duration
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 90*time.Second, back.Duration)
}
