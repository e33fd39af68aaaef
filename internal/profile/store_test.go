package profile

import (
	"os"
	"path/filepath"
	"testing"

	"disnix/internal/config"
	"disnix/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `<?xml version="1.0"?>
<manifest>
  <services>
    <service key="webapp-key">
      <name>webapp</name>
      <type>process</type>
      <path>/nix/store/webapp</path>
    </service>
  </services>
  <infrastructure>
    <target key="target1">
      <property name="hostname">target1.example.com</property>
    </target>
  </infrastructure>
</manifest>`

func writeSampleManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{ProfilesDir: t.TempDir(), Profile: "default"}
}

func TestCommitCreatesGenerationAndCurrentLink(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore(cfg, "")
	src := writeSampleManifest(t)

	gen, err := s.Commit(src)
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	cur, err := s.CurrentGeneration()
	require.NoError(t, err)
	assert.Equal(t, 1, cur)

	_, err = os.Stat(s.ManifestPath(1))
	require.NoError(t, err)
}

func TestCommitIncrementsGenerationAndMovesCurrent(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore(cfg, "")
	src := writeSampleManifest(t)

	gen1, err := s.Commit(src)
	require.NoError(t, err)
	gen2, err := s.Commit(src)
	require.NoError(t, err)
	assert.Equal(t, gen1+1, gen2)

	cur, err := s.CurrentGeneration()
	require.NoError(t, err)
	assert.Equal(t, gen2, cur)

	generations, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []int{gen1, gen2}, generations)
}

func TestDetermineManifestToOpenLoadsCurrent(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore(cfg, "")
	src := writeSampleManifest(t)
	_, err := s.Commit(src)
	require.NoError(t, err)

	m, err := s.DetermineManifestToOpen(manifest.FlagAll)
	require.NoError(t, err)
	assert.Contains(t, m.Targets, "target1")
}

func TestDetermineManifestToOpenFailsWithNoGenerations(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore(cfg, "")

	_, err := s.DetermineManifestToOpen(manifest.FlagAll)
	require.ErrorIs(t, err, ErrNoGenerations)
}

func TestDetermineManifestToOpenRecoversFromDanglingCurrent(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore(cfg, "")
	src := writeSampleManifest(t)

	gen1, err := s.Commit(src)
	require.NoError(t, err)

	// Simulate a partial commit: "current" points at a generation directory
	// whose manifest file is missing.
	badGen := gen1 + 1
	require.NoError(t, os.MkdirAll(s.generationDir(badGen), 0o755))
	require.NoError(t, s.swapCurrent(badGen))

	m, err := s.DetermineManifestToOpen(manifest.FlagAll)
	require.NoError(t, err)
	assert.Contains(t, m.Targets, "target1")
}
