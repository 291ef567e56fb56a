// Package preflight provides readiness checks for the directories and
// endpoints the pipeline depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before the sequencer starts. If any check
//     fails, the run aborts before ingesting anything.
//   - The status command uses the individual checks (CheckDirectoryAccess,
//     CheckEndpoint) to display service health.
package preflight
