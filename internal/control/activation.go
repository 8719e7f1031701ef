package control

import (
	"net"

	"github.com/coreos/go-systemd/v22/activation"
)

// ListenersFromEnvironment returns the sockets systemd (or a parent
// upstart instance re-execing into --session mode) passed down via the
// LISTEN_FDS/LISTEN_PID protocol, for the session bus or control socket
// to bind to without racing a fresh listen(2) against a client that
// already connected before the re-exec.
func ListenersFromEnvironment() ([]net.Listener, error) {
	return activation.Listeners()
}

// PacketConnsFromEnvironment is the datagram-socket equivalent, used for
// the --session control socket when it is a SOCK_DGRAM rather than a
// SOCK_STREAM endpoint.
func PacketConnsFromEnvironment() ([]net.PacketConn, error) {
	return activation.PacketConns()
}
