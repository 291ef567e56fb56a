// Package stage defines the contract shared by pipeline stages and the
// records the runner reports about them.
package stage
