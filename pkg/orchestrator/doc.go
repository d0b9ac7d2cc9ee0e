// Package orchestrator answers a chat request end to end.
//
// An Orchestrator owns a base backend handle and the capability registry.
// Complete validates the invocation policy, builds the conversation, picks the
// capabilities the backend may call, runs the backend under a bounded timeout
// and checks that something came back. Every failure is reported as an
// *OrchestrationError naming the stage that failed.
//
// ChatHandler adapts an Orchestrator to the transport layer.
package orchestrator
