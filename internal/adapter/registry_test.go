package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

const minimalFixture = `{
  "plant_summary": {
    "todayEnergyKWh": 12.0,
    "lastSeenAt": "2026-02-18T14:30:00Z",
    "sourceSampledAt": "2026-02-18T14:30:00Z",
    "timezone": "UTC"
  },
  "daily_series": [],
  "alarms": []
}`

func fixtureDirForAllBrands(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, brand := range domain.AllBrands() {
		name := strings.ToLower(string(brand)) + ".json"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(minimalFixture), 0o644))
	}
	return dir
}

func TestNewMockRegistry_AllBrands(t *testing.T) {
	reg, err := NewMockRegistry(fixtureDirForAllBrands(t))
	require.NoError(t, err)
	assert.True(t, reg.MockMode())

	for _, brand := range domain.AllBrands() {
		a, ok := reg.Lookup(brand)
		require.True(t, ok, "brand %s missing", brand)
		_, isMock := a.(*MockAdapter)
		assert.True(t, isMock, "brand %s must be mock-backed in mock mode", brand)
		assert.Equal(t, brand, a.Capabilities().Brand)
	}
	assert.Len(t, reg.Brands(), 4)
}

func TestNewMockRegistry_MissingFixtureFails(t *testing.T) {
	dir := t.TempDir()
	// Only one of four fixtures present.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solis.json"), []byte(minimalFixture), 0o644))

	_, err := NewMockRegistry(dir)
	assert.Error(t, err, "startup must abort when a brand fixture is unreadable")
}

func TestNewLiveRegistry_RefusesMockMode(t *testing.T) {
	_, err := NewLiveRegistry(true, 8)
	require.Error(t, err, "live adapters in mock mode would permit network I/O")
}

func TestNewLiveRegistry(t *testing.T) {
	reg, err := NewLiveRegistry(false, 8)
	require.NoError(t, err)
	assert.False(t, reg.MockMode())
	for _, brand := range domain.AllBrands() {
		_, ok := reg.Lookup(brand)
		assert.True(t, ok, "brand %s missing", brand)
	}
}
