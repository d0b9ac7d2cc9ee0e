// Package capability holds the named capability modules the language-model
// backend may invoke during a completion, and the registry they are
// registered in.
//
// A [Module] contributes one or more [Function] definitions with JSON-schema
// parameters. Modules are registered once at startup under a unique name;
// the orchestrator then resolves a caller's selection into an active [Set]
// for each completion. Function names are qualified with the module name
// (see [QualifiedName]) before they are shown to the model, so two modules
// may both expose, say, a "search" function.
//
// Concrete modules live in subpackages: datetime, geocoding, weather,
// websearch and mcp.
package capability
