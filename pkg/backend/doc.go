// Package backend builds ready-to-use clients for the language-model backend
// and runs the autonomous capability loop on top of them.
//
// A Factory turns a Config into an immutable Handle. Provider adapters live in
// sub-packages (openaicompat, bedrock, gemini) and are registered by name;
// see the providers package for the default set. Build performs no network
// I/O: a bad endpoint or credential surfaces on the first Complete call.
//
// A Handle may be narrowed to a capability set with WithCapabilities, which
// returns a copy. Handle.Complete sends the conversation together with the
// functions of the exposed capabilities, invokes whatever functions the model
// asks for, feeds the results back, and repeats until the model answers in
// text.
package backend
