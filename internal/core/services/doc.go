// Package services implements the driving port interfaces.
// Services contain the core retrieval logic and orchestrate
// calls to driven ports (adapters).
//
// The ephemeral cache, result merger and retrieval fan-out live here;
// embedding, storage and file access are reached only through ports.
package services
