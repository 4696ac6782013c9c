package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnvironment(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", EnvDevelopment},
		{"development", EnvDevelopment},
		{" STAGING ", EnvStaging},
		{"Production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEnvironment(tt.value))
		})
	}
}

func TestProductionLike(t *testing.T) {
	assert.False(t, ProductionLike("development"))
	assert.False(t, ProductionLike(""))
	assert.True(t, ProductionLike("Staging"))
	assert.True(t, ProductionLike(EnvProduction))
}

func TestLoadNormalizesEnvironment(t *testing.T) {
	t.Setenv("ALMOX_SERVER_ENVIRONMENT", "PRODUCTION")

	cfg, err := Load("almox-test")
	assert.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Server.Environment)
}
