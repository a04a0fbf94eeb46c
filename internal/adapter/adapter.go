// Package adapter names the host-import surface a running module expects,
// per spec.md §6's ten fixed imports. The runtime that actually satisfies
// these imports (a wasmtime/wasmer linker, a JS host, or anything else) is
// an out-of-scope external collaborator — this package exists only so the
// driver and codegen agree on the surface by name.
package adapter

import "context"

// HostAdapter is the set of host functions every compiled module imports,
// matching the WAT-side $nexus_* import names one-for-one (spec.md §6).
// Concrete wiring into a wasm runtime (instantiating a store, a linker,
// memory access) is out of scope here.
type HostAdapter interface {
	JSConsoleLog(ctx context.Context, ptr, length int32)
	JSONDecode(ctx context.Context, ptr, length int32) (resultPtr int32)
	JSONEncode(ctx context.Context, ptr int32) (resultPtr int32)
	HTTPGet(ctx context.Context, urlPtr, urlLen int32) (promiseID int32)
	HTTPPost(ctx context.Context, urlPtr, urlLen, bodyPtr, bodyLen int32) (promiseID int32)
	FSReadFile(ctx context.Context, pathPtr, pathLen int32) (promiseID int32)
	FSWriteFile(ctx context.Context, pathPtr, pathLen, dataPtr, dataLen int32) (promiseID int32)
	SetTimeout(ctx context.Context, callbackID, delayMs int32) (timerID int32)
	ClearTimeout(ctx context.Context, timerID int32)
	PromiseAwait(ctx context.Context, promiseID int32) (resultPtr int32)
}
