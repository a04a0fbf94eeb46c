package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runMain(t *testing.T, args []string) (exitCode int, stdOut, stdErr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	exitCode = doMain(args, &outBuf, &errBuf)
	return exitCode, outBuf.String(), errBuf.String()
}

func TestDoMain_BuildWritesWAT(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "add.zs")
	require.NoError(t, os.WriteFile(src, []byte(
		`export fn add(a: i32, b: i32) -> i32 { return a + b; }`), 0o644))

	// The default output path is the source's base name, relative to the
	// working directory, so run from dir to find add.wat there.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	flagOutput = ""
	exitCode, stdOut, _ := runMain(t, []string{"build", src})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdOut, "wrote")

	out, err := os.ReadFile(filepath.Join(dir, "add.wat"))
	require.NoError(t, err)
	require.Contains(t, string(out), "$add")
}

func TestDoMain_CheckValidSourcePrintsOK(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ok.zs")
	require.NoError(t, os.WriteFile(src, []byte(
		`fn f() -> i32 { return 1; }`), 0o644))

	exitCode, stdOut, _ := runMain(t, []string{"check", src})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdOut, "ok")
}

func TestDoMain_CheckInvalidSourceFailsNonZero(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.zs")
	require.NoError(t, os.WriteFile(src, []byte(
		`fn f() -> i32 { return "nope"; }`), 0o644))

	exitCode, _, stdErr := runMain(t, []string{"check", src})
	require.NotEqual(t, 0, exitCode)
	require.NotEmpty(t, stdErr)
}

func TestDoMain_VersionPrints(t *testing.T) {
	exitCode, stdOut, _ := runMain(t, []string{"version"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdOut, "dev")
}
