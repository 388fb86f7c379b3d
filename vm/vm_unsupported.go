//go:build !linux && !darwin && !windows

package vm

// Stub file to ensure compilation fails if the target platform has no
// reserve/commit/release implementation above. This prevents an
// accidental build against a host this package silently can't back.

func init() {
	// Deliberately undefined: the build fails with
	// "undefined: compileError_PLATFORM_NOT_SUPPORTED", which names the
	// problem directly instead of failing deep inside a syscall.
	compileError_PLATFORM_NOT_SUPPORTED()
}
