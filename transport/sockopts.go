package transport

import (
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// netConner is implemented by *tls.Conn (Go 1.18+) to expose the raw
// connection it wraps.
type netConner interface {
	NetConn() net.Conn
}

// setTCPLinger sets SO_LINGER=0 on the underlying TCP socket of conn so a
// closed connection does not tie up the local port in TIME_WAIT. conn may be
// a *net.TCPConn directly, or a *tls.Conn wrapping one. Per spec §4.3/§9,
// this is a best-effort call: failures are logged, never fatal, and no
// OS-specific TIME_WAIT workaround is attempted beyond this option.
func setTCPLinger(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		if nc, ok := conn.(netConner); ok {
			tcpConn, ok = nc.NetConn().(*net.TCPConn)
			if !ok {
				return
			}
		} else {
			return
		}
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		log.Debug().Err(err).Msg("SyscallConn unavailable, skipping SO_LINGER")
		return
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		err = unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{
			Onoff:  1,
			Linger: 0,
		})
	})
	if ctrlErr != nil {
		log.Debug().Err(ctrlErr).Msg("failed to control TCP socket for SO_LINGER")
		return
	}
	if err != nil {
		log.Debug().Err(err).Msg("failed to set SO_LINGER=0")
	}
}
