// Package triage provides the business boundary for sift's ticket triage.
// It defines the Engine (pure classification: normalize, predict priority,
// route to a team), the Service (validation, persistence, async follow-up
// notifications and suggested replies), the Store interface, and the domain
// models.
package triage
