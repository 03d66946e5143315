package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GROWCAL_CATALOG_PATH", "")
	return filepath.Join(home, "growcal.db")
}

func TestZipImportAndLookup(t *testing.T) {
	db := setupHome(t)

	csvPath := filepath.Join(t.TempDir(), "zips.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"zip,latitude,longitude,city,state\n"+
			"50010,42.0347,-93.6200,Ames,ia\n"+
			"2134,42.3539,-71.1337,Allston,MA\n"), 0o644))

	out, err := run(t, "--db", db, "zip", "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 ZIP codes")

	out, err = run(t, "--db", db, "zip", "lookup", "50010")
	require.NoError(t, err)
	assert.Contains(t, out, "Ames, IA")
	assert.Contains(t, out, "42.0347")

	out, err = run(t, "--db", db, "zip", "lookup", "02134-1234")
	require.NoError(t, err)
	assert.Contains(t, out, "Allston, MA")

	_, err = run(t, "--db", db, "zip", "lookup", "99999")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "--db", db, "zip", "lookup", "ames")
	assert.ErrorContains(t, err, "invalid zip code")
}

func TestCatalogCommands(t *testing.T) {
	db := setupHome(t)

	out, err := run(t, "--db", db, "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "asparagus")
	assert.Contains(t, out, "tomato")
	assert.Contains(t, out, "Apr, May")

	out, err = run(t, "--db", db, "catalog", "show", "Tomato")
	require.NoError(t, err)
	assert.Contains(t, out, `"perPhaseGuidance"`)
	assert.Contains(t, out, `"transplanted"`)

	_, err = run(t, "--db", db, "catalog", "show", "kudzu")
	assert.ErrorContains(t, err, "crop not found")
}

func TestCachePurge(t *testing.T) {
	db := setupHome(t)

	out, err := run(t, "--db", db, "cache", "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 0 cache entries")
}

func TestCommandsRequireZipArgument(t *testing.T) {
	db := setupHome(t)

	for _, name := range []string{"weather", "crops", "calendar"} {
		_, err := run(t, "--db", db, name)
		assert.Error(t, err, name)
	}
}
