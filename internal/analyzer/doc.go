// Package analyzer scores submitted videos. The default engine delegates to a
// configured external command and parses its JSON verdict; without a command
// the built-in engine produces a deterministic score so the daemon stays
// usable in development and tests.
package analyzer
