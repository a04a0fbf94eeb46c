package codegen

import (
	"strings"
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/stretchr/testify/require"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/checker"
	"github.com/zigscript-lang/zsc/internal/parser"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	p := parser.New(src, ast.NewArena())
	mod, err := p.ParseModule("test.zs")
	require.NoError(t, err)
	chk := checker.New(nil)
	require.NoError(t, chk.CheckModule(mod))
	out, err := New(chk, nil).Generate(mod)
	require.NoError(t, err)
	return out
}

// balancedParens is the spec.md §8 "Lowering invariant" (a) check.
func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

func TestGenerate_IdentityFunction(t *testing.T) {
	out := generate(t, `export fn add(a: i32, b: i32) -> i32 { return a + b; }`)
	require.True(t, balancedParens(out))
	require.NotContains(t, out, "UnsupportedFeature")
	require.Contains(t, out, `(func $add (export "add") (param $a i32) (param $b i32) (result i32)`)
	require.Contains(t, out, "local.get $a")
	require.Contains(t, out, "local.get $b")
	require.Contains(t, out, "i32.add")
}

// TestGenerate_IdentityFunctionAssembles is the wasmtime-go golden-assembly
// check called for in SPEC_FULL.md §2: the emitted WAT for the simplest
// end-to-end scenario (spec.md §8 scenario 1) must actually assemble.
func TestGenerate_IdentityFunctionAssembles(t *testing.T) {
	out := generate(t, `export fn add(a: i32, b: i32) -> i32 { return a + b; }`)
	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}

func TestGenerate_ArrayLiteralAndIndex(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [10, 20, 30];
	return xs[1];
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "i32.const 8192")
	require.Contains(t, out, "i32.const 3")  // length
	require.Contains(t, out, "i32.const 6")  // capacity = 2*len
	require.Contains(t, out, "i32.const 10")
	require.Contains(t, out, "i32.const 20")
	require.Contains(t, out, "i32.const 30")
}

func TestGenerate_LambdaAndCall(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let double = fn(x: i32) => x * 2;
	return double(21);
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "(type $lambda_type_1 (func (param i32) (result i32)))")
	require.Contains(t, out, "(func $lambda_0")
	require.Contains(t, out, "call_indirect (type $lambda_type_1)")
	require.Contains(t, out, "(table 1 funcref)")
	require.Contains(t, out, "(elem (i32.const 0) $lambda_0)")
}

func TestGenerate_AwaitLowersToHostCall(t *testing.T) {
	out := generate(t, `
async fn fetchIt(u: string) -> string { return u; }
fn f() -> string {
	let r = await fetchIt("x");
	return r;
}`)
	require.Contains(t, out, "call $nexus_promise_await")
}

func TestGenerate_StructFieldOffsets(t *testing.T) {
	out := generate(t, `
struct Point {
	x: i32,
	y: i32,
}
fn f() -> i32 {
	let p = Point { x: 1, y: 2 };
	return p.y;
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "i32.const 4") // y is field index 1 -> offset 4
}

func TestGenerate_StructMethodDispatch(t *testing.T) {
	out := generate(t, `
struct Point {
	x: i32,
	y: i32,
	fn sum(self: Point) -> i32 {
		return self.x + self.y;
	}
}
fn f() -> i32 {
	let p = Point { x: 1, y: 2 };
	return p.sum();
}`)
	require.Contains(t, out, "(func $Point_sum")
	require.Contains(t, out, "call $Point_sum")
}

func TestGenerate_HostImportsAlwaysPresent(t *testing.T) {
	out := generate(t, `export fn noop() -> void {}`)
	for _, want := range []string{
		`(memory (import "env" "memory") 1)`,
		`(func $nexus_js_console_log (import "env" "js_console_log")`,
		`(func $nexus_json_decode (import "std" "json_decode")`,
		`(func $nexus_promise_await (import "std" "promise_await")`,
	} {
		require.Contains(t, out, want)
	}
}

func TestGenerate_ExternFnDeclImportsOwnBinding(t *testing.T) {
	out := generate(t, `extern fn log(msg: string) -> void from "env" "js_console_log";`)
	require.Contains(t, out, `(func $log (import "env" "js_console_log")`)
}

func TestGenerate_StringInterpolationConcatenates(t *testing.T) {
	out := generate(t, `
fn f() -> string {
	let name = "world";
	return "hello {name}";
}`)
	require.True(t, balancedParens(out))
	require.NotContains(t, out, "UnsupportedFeature")
	require.Contains(t, out, "i32.store8")
	require.Contains(t, out, "interp_cursor")
}

func TestGenerate_MonotoneAddresses(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let a = [1, 2];
	let b = [3, 4, 5];
	return a[0] + b[0];
}`)
	_ = out
	// a reserves capacity 4 (8+4*4=24 bytes at 8192), b reserves capacity 6
	// (8+6*4=32 bytes at 8216): strictly increasing, 4-byte aligned, and
	// >= 8192 per the spec.md §8 "Monotone addresses" invariant. Capacity
	// is backed by real reserved memory (not just literal metadata) so
	// push() has room to grow into without corrupting the next allocation.
	require.Contains(t, out, "i32.const 8192")
	require.Contains(t, out, "i32.const 8216")
}

func TestGenerate_BitwiseOperatorsLower(t *testing.T) {
	out := generate(t, `fn f() -> i32 { return 5 & 3 | 1 ^ 2; }`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "i32.and")
	require.Contains(t, out, "i32.or")
	require.Contains(t, out, "i32.xor")
}

func TestGenerate_NoUnsupportedFeatureMarkerInWellTypedOutput(t *testing.T) {
	out := generate(t, `
fn f(x: i32) -> i32 {
	if x > 0 {
		return x;
	} else {
		return -x;
	}
}`)
	require.False(t, strings.Contains(out, "UnsupportedFeature"))
}

// TestGenerate_BreakContinueTargetEnclosingLoop guards against break/continue
// emitting a fixed label that doesn't match the freshly generated per-loop
// block/loop labels.
func TestGenerate_BreakContinueTargetEnclosingLoop(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2, 3];
	let sum = 0;
	for x in xs {
		if x == 2 {
			continue;
		}
		if x == 3 {
			break;
		}
		sum = sum + x;
	}
	return sum;
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "for_break_")
	require.Contains(t, out, "for_continue_")
	require.NotContains(t, out, "br $break")
	require.NotContains(t, out, "br $continue")
	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}

// TestGenerate_ForLoopContinueRunsIncrement guards the bug where `continue`
// targeted the loop header directly: that skips the index increment (emitted
// after the body, before the trailing br to the header) and reprocesses the
// same element forever. continue must target an inner block wrapping only
// the body, so the increment still runs on the way back to the header.
func TestGenerate_ForLoopContinueRunsIncrement(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2, 3];
	let sum = 0;
	for x in xs {
		if x == 2 {
			continue;
		}
		sum = sum + x;
	}
	return sum;
}`)
	require.True(t, balancedParens(out))

	contIdx := strings.Index(out, "br $for_continue_inner_")
	require.NotEqual(t, -1, contIdx, "continue must target the inner body block, not the loop header")

	incrIdx := strings.LastIndex(out, "i32.const 1\n        i32.add")
	require.NotEqual(t, -1, incrIdx)
	require.Greater(t, incrIdx, contIdx, "index increment must fall after the continue target so the continue path still runs it")

	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}

func TestGenerate_ArrayLen(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2, 3];
	return xs.len();
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "local.get $xs")
	require.Contains(t, out, "i32.load")
	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}

// TestGenerate_ArrayPushGrowsAndAssembles exercises both the in-place path
// (spare reserved capacity) and the reallocating path (capacity exhausted)
// of push, and checks the result still assembles.
func TestGenerate_ArrayPushGrowsAndAssembles(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2];
	xs.push(3);
	xs.push(4);
	xs.push(5);
	return xs.len();
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "global $heap_next")
	require.Contains(t, out, "global.get $heap_next")
	require.Contains(t, out, "global.set $heap_next")
	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}

// TestGenerate_NoArrayPushOmitsHeapGlobal confirms the $heap_next global is
// only emitted when something in the module actually calls push — most
// programs never need the runtime allocator.
func TestGenerate_NoArrayPushOmitsHeapGlobal(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2, 3];
	return xs[0];
}`)
	require.NotContains(t, out, "$heap_next")
}

func TestGenerate_ArrayPop(t *testing.T) {
	out := generate(t, `
fn f() -> i32 {
	let xs = [1, 2, 3];
	return xs.pop();
}`)
	require.True(t, balancedParens(out))
	require.Contains(t, out, "i32.sub")
	_, err := wasmtime.Wat2Wasm(out)
	require.NoError(t, err)
}
