package app

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func splitPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
