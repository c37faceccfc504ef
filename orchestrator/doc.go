// Package orchestrator drives the per-turn agentic loop between a
// provider client and the tool server registry: generate, detect a
// tool-call request, resolve and execute it, feed the result back, and
// repeat until a terminal answer, an error, or the iteration cap.
package orchestrator
