//go:build windows

package logging

import (
	"syscall"
	"unsafe"
)

var (
	modkernel32            = syscall.NewLazyDLL("kernel32.dll")
	procOutputDebugStringW = modkernel32.NewProc("OutputDebugStringW")
)

type windowsTracer struct{}

// Trace calls kernel32!OutputDebugStringW directly, the same API the
// original reaches via ctypes.windll.kernel32.OutputDebugStringW.
func (windowsTracer) Trace(msg string) {
	ptr, err := syscall.UTF16PtrFromString(msg)
	if err != nil {
		return
	}
	procOutputDebugStringW.Call(uintptr(unsafe.Pointer(ptr)))
}

func platformTracer() Tracer {
	return windowsTracer{}
}
