// Package preflight provides readiness checks for the paths, credentials,
// and external services the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs any failures so an operator
//     sees a broken setup before the lanes go idle on it.
//   - The CLI "status" command renders the same checks as a table.
package preflight
