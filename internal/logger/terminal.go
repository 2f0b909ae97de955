//go:build !windows && !linux

package logger

import (
	"syscall"
	"unsafe"
)

// isTerminal checks if the file descriptor is a terminal on BSD-derived
// Unix systems (the gateway's field-tooling build targets besides its
// Linux controller image and Windows commissioning build). Excludes
// linux explicitly: terminal_linux.go owns that target with its own
// ioctl number, and without this exclusion both files match GOOS=linux
// and redeclare isTerminal.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, err := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		syscall.TIOCGETA, // BSD/Darwin ioctl number for terminal attributes
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return err == 0
}
