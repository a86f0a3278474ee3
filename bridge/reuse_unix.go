//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package bridge

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl lets other sockets bind the same UDP address.
func reuseControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
