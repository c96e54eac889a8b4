// Package engine provides the low-level wazero integration for hosting graph
// engine binaries.
//
// Engine owns the wazero runtime and host function registrations. Load
// compiles a binary into a Module; InstantiateWithConfig produces a running
// Instance with cached exports, linear memory access, and the guest allocator
// (malloc/free). An optional ABI table, declared in WIT-style text, validates
// the instantiated module's export signatures at load time since core modules
// carry no type metadata of their own.
package engine
