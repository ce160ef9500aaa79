// Package services holds cross-cutting helpers shared by the collaborator
// wrappers: the error taxonomy used to classify failures for the state
// machine, and context annotation helpers so log lines can carry submission
// identifiers without threading them through every call site.
package services
