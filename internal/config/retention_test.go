package config

import (
	"testing"
)

func TestRetentionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetentionConfig
		wantErr bool
	}{
		{
			name:    "default config is valid",
			cfg:     DefaultRetentionConfig(),
			wantErr: false,
		},
		{
			name:    "zero keeps everything",
			cfg:     RetentionConfig{Keep: 0},
			wantErr: false,
		},
		{
			name:    "maximum bound",
			cfg:     RetentionConfig{Keep: 100000},
			wantErr: false,
		},
		{
			name:    "too high",
			cfg:     RetentionConfig{Keep: 100001},
			wantErr: true,
		},
		{
			name:    "negative",
			cfg:     RetentionConfig{Keep: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
