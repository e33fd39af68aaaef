package registry

import (
	"testing"

	"disnix/internal/config"
	"disnix/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifestForRegistry() *manifest.Manifest {
	return &manifest.Manifest{
		Targets: map[string]*manifest.Target{
			"target1": {
				Key:        "target1",
				Properties: map[string]string{"hostname": "target1.example.com"},
				Containers: map[string]manifest.Container{"process": {Name: "process"}},
			},
			"target2": {
				Key:             "target2",
				Properties:      map[string]string{"hostname": "target2.example.com"},
				Containers:      map[string]manifest.Container{"process": {Name: "process"}},
				ClientInterface: "disnix-custom-client",
			},
		},
	}
}

func TestBuildResolvesAddressAndClientInterface(t *testing.T) {
	m := sampleManifestForRegistry()
	cfg := config.Config{TargetProperty: "hostname", ClientInterface: "disnix-ssh-client"}

	r, err := Build(m, cfg)
	require.NoError(t, err)

	t1, ok := r.Get("target1")
	require.True(t, ok)
	assert.Equal(t, "target1.example.com", t1.Address)
	assert.Equal(t, "disnix-ssh-client", t1.ClientInterface)

	t2, ok := r.Get("target2")
	require.True(t, ok)
	assert.Equal(t, "disnix-custom-client", t2.ClientInterface)
}

func TestBuildFailsOnMissingAddressProperty(t *testing.T) {
	m := &manifest.Manifest{
		Targets: map[string]*manifest.Target{
			"target1": {Key: "target1", Properties: map[string]string{}},
		},
	}
	cfg := config.Config{TargetProperty: "hostname"}

	_, err := Build(m, cfg)
	require.Error(t, err)
}

func TestKeysAreSorted(t *testing.T) {
	m := sampleManifestForRegistry()
	cfg := config.Config{TargetProperty: "hostname"}

	r, err := Build(m, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"target1", "target2"}, r.Keys())
	assert.Equal(t, 2, r.Len())
}
