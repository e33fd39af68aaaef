// Package logging provides the structured logging system shared by every disnix
// stage, built on top of log/slog with a controller-runtime logr bridge.
//
// # Log Levels
//   - Debug: detailed diagnostic output (verb invocations, template expansion)
//   - Info: normal stage progress (target visited, profile committed)
//   - Warn: recoverable problems (best-effort unlock failed, missing cache hit)
//   - Error: failures that affect the deploy outcome
//
// # Usage
//
//	import "disnix/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("coordinator", "loaded manifest %s", path)
//	logging.Info("target: "+key, "activating %s", service)
//	logging.Error("target: webserver1", err, "activate failed")
//
// Log lines are tagged with a subsystem string; by convention this is either
// "coordinator" for orchestrator-side bookkeeping or "target: KEY" for a line
// produced while operating against a specific deployment target.
//
// # controller-runtime bridge
//
// InitForCLI also installs the configured slog handler as controller-runtime's
// global logger via ctrl.SetLogger, so any future reconciliation-style
// controller built against the same target registry logs through this sink
// without needing a second logging stack.
package logging
