package config

// Config is the top-level configuration for the disnix orchestrator. Every
// field has an environment-variable default (see defaults.go / FromEnv);
// a config.yaml overlay can override any of them for operators who want to
// pin values outside the environment.
type Config struct {
	// ClientInterface is the executable invoked as the remote agent client
	// (DISNIX_CLIENT_INTERFACE, default "disnix-ssh-client").
	ClientInterface string `yaml:"clientInterface,omitempty"`

	// TargetProperty names the manifest target property used to resolve a
	// target's connection address (DISNIX_TARGET_PROPERTY, default "hostname").
	TargetProperty string `yaml:"targetProperty,omitempty"`

	// Profile is the coordinator profile name under which generations are
	// recorded (DISNIX_PROFILE, default "default").
	Profile string `yaml:"profile,omitempty"`

	// ProfilesDir is the directory holding per-profile generation links
	// (default "$HOME/.disnix/profiles").
	ProfilesDir string `yaml:"profilesDir,omitempty"`

	// StateDir is where snapshot tarballs are staged during migration
	// (DYSNOMIA_STATEDIR, default "$HOME/.disnix/state").
	StateDir string `yaml:"stateDir,omitempty"`

	// TmpDir is used for scratch files during distribution and migration
	// (TMPDIR, default os.TempDir()).
	TmpDir string `yaml:"tmpDir,omitempty"`

	// DeleteState controls whether a moved service's state is deleted from
	// its old target once the move has completed (DISNIX_DELETE_STATE,
	// default false).
	DeleteState bool `yaml:"deleteState,omitempty"`

	// MaxConcurrentTransfers bounds how many distribution/activation verbs
	// the parallel engine admits at once (default 2).
	MaxConcurrentTransfers int `yaml:"maxConcurrentTransfers,omitempty"`
}
