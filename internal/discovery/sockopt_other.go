//go:build !unix

package discovery

import "net"

// listenConfig relies on the runtime defaults, which already enable
// broadcast on UDP sockets.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
