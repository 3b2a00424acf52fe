package commands

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// listenLocal occupies a TCP port on all interfaces and returns it.
func listenLocal(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
}
