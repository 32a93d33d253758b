package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("FUZZY_THRESHOLD")
	os.Unsetenv("STORE_DRIVER")
	os.Unsetenv("CANDIDATE_ENTITY_TYPES")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 0.85, cfg.Canon.FuzzyThreshold)
	assert.Equal(t, "KCD8", cfg.Canon.ClassificationVersion)
	assert.Equal(t, []string{"coverage", "disease_scope"}, cfg.Canon.AllowedEntityTypes)
	assert.Equal(t, 7*24*time.Hour, cfg.Canon.SnoozeDuration)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 8081, cfg.Server.GraphQLPort)
}

func TestLoad_CanonOverrides(t *testing.T) {
	os.Setenv("FUZZY_THRESHOLD", "0.9")
	os.Setenv("STORE_DRIVER", "memory")
	os.Setenv("CANDIDATE_ENTITY_TYPES", "coverage, waiting_period")
	os.Setenv("WORKBENCH_SNOOZE_DURATION", "48h")
	defer func() {
		os.Unsetenv("FUZZY_THRESHOLD")
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("CANDIDATE_ENTITY_TYPES")
		os.Unsetenv("WORKBENCH_SNOOZE_DURATION")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Canon.FuzzyThreshold)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"coverage", "waiting_period"}, cfg.Canon.AllowedEntityTypes)
	assert.Equal(t, 48*time.Hour, cfg.Canon.SnoozeDuration)
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	os.Setenv("FUZZY_THRESHOLD", "1.5")
	defer os.Unsetenv("FUZZY_THRESHOLD")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_RejectsUnknownStoreDriver(t *testing.T) {
	os.Setenv("STORE_DRIVER", "sqlite")
	defer os.Unsetenv("STORE_DRIVER")

	_, err := Load()
	assert.Error(t, err)
}
