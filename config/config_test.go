package config

import (
	"os"
	"path/filepath"
	"testing"

	"finnsync/models"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MAX_PRICE", "")
	t.Setenv("INCLUDE_UNLISTED", "")
	t.Setenv("MIN_SNAPSHOT_RATIO", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.NotNil(t, cfg.Filters.MaxPrice)
	require.Equal(t, DefaultMaxPrice, *cfg.Filters.MaxPrice)
	require.True(t, cfg.Filters.IncludeUnlisted)
	require.Zero(t, cfg.Reconcile.MinSnapshotRatio)
	require.Equal(t, 8, cfg.Commute.Morning.Hour)
	require.Equal(t, 16, cfg.Commute.ReturnHour)

	site := cfg.Site(models.KindEiendom)
	require.Equal(t, "Eie", site.Sheet)
	require.Equal(t, "Eie(unlisted)", site.UnlistedSheet)
	require.Equal(t, "https://www.finn.no", site.BaseURL)
}

func TestLoad_MaxPriceDisabled(t *testing.T) {
	for _, val := range []string{"0", "none", "off"} {
		t.Setenv("MAX_PRICE", val)
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		require.Nil(t, cfg.Filters.MaxPrice, "MAX_PRICE=%s", val)
	}
}

func TestLoad_InvalidMaxPrice(t *testing.T) {
	t.Setenv("MAX_PRICE", "cheap")
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_SitesAndCommute(t *testing.T) {
	t.Setenv("MAX_PRICE", "7000000")
	t.Setenv("INCLUDE_UNLISTED", "false")
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "sites", "eiendom.yaml"), `
id: eiendom
name: Homes
search_url: https://example.test/search?q=1
link_pattern: '/ad\.html\?finnkode=\d+'
sheet: Hjem
commute: true
`)
	writeFile(t, filepath.Join(dir, "sites", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "commute.yaml"), `
anchors:
  BRJ: "Somewhere 1, 0150 Oslo"
  MVV: "Elsewhere 2, 1364 Fornebu"
morning:
  weekday: tuesday
  hour: 7
return_hour: 15
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, 7000000, *cfg.Filters.MaxPrice)
	require.False(t, cfg.ExportFilter().IncludeUnlisted)

	site := cfg.Site(models.KindEiendom)
	require.Equal(t, "Homes", site.Name)
	require.Equal(t, "Hjem", site.Sheet)
	require.Equal(t, "Hjem(unlisted)", site.UnlistedSheet)
	require.Equal(t, "page", site.PageParam)
	require.True(t, site.Commute)

	require.Equal(t, "Somewhere 1, 0150 Oslo", cfg.Commute.Anchors["BRJ"])
	require.Equal(t, "tuesday", cfg.Commute.Morning.Weekday)
	require.Equal(t, 7, cfg.Commute.Morning.Hour)
	require.Equal(t, 15, cfg.Commute.ReturnHour)
	require.Equal(t, "Europe/Oslo", cfg.Commute.Timezone)
}

func TestLoad_UnknownSiteKind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sites", "boats.yaml"), "id: boats\n")

	_, err := Load(dir)
	require.Error(t, err)
}
