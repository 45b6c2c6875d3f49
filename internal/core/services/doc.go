// Package services implements the driving port interfaces.
// Services contain the core business logic - the tree builder state
// machine, cluster summarisation, staleness tracking and combined
// search - and orchestrate calls to driven ports (adapters).
package services
