package config

import (
	"os"
	"path/filepath"
)

const (
	defaultClientInterface = "disnix-ssh-client"
	defaultTargetProperty  = "hostname"
	defaultProfile         = "default"
	defaultMaxTransfers    = 2
)

// FromEnv builds a Config from the DISNIX_*/DYSNOMIA_*/TMPDIR environment
// variables, falling back to the defaults used by the reference
// implementation where a variable is unset.
func FromEnv() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	cfg := Config{
		ClientInterface:        defaultClientInterface,
		TargetProperty:         defaultTargetProperty,
		Profile:                defaultProfile,
		ProfilesDir:            filepath.Join(home, ".disnix", "profiles"),
		StateDir:               filepath.Join(home, ".disnix", "state"),
		TmpDir:                 os.TempDir(),
		DeleteState:            false,
		MaxConcurrentTransfers: defaultMaxTransfers,
	}

	if v := os.Getenv("DISNIX_CLIENT_INTERFACE"); v != "" {
		cfg.ClientInterface = v
	}
	if v := os.Getenv("DISNIX_TARGET_PROPERTY"); v != "" {
		cfg.TargetProperty = v
	}
	if v := os.Getenv("DISNIX_PROFILE"); v != "" {
		cfg.Profile = v
	}
	if v := os.Getenv("DISNIX_PROFILES_DIR"); v != "" {
		cfg.ProfilesDir = v
	}
	if v := os.Getenv("DYSNOMIA_STATEDIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("TMPDIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("DISNIX_DELETE_STATE"); v == "1" || v == "true" {
		cfg.DeleteState = true
	}

	return cfg
}
