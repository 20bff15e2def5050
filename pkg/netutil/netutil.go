// Package netutil holds listener helpers shared by the binaries.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// Listen opens a TCP listener on port. When fallback is set and the port
// is already taken, an ephemeral port is used instead. The bound port is
// returned either way.
func Listen(ctx context.Context, port string, fallback bool) (net.Listener, int, error) {
	var lc net.ListenConfig

	lis, err := lc.Listen(ctx, "tcp", ":"+port)
	if err == nil {
		return lis, boundPort(lis), nil
	}
	if !fallback || !errors.Is(err, syscall.EADDRINUSE) {
		return nil, 0, fmt.Errorf("listen on :%s: %w", port, err)
	}

	lis, err = lc.Listen(ctx, "tcp", ":0")
	if err != nil {
		return nil, 0, fmt.Errorf("listen on :%s and fallback port: %w", port, err)
	}
	return lis, boundPort(lis), nil
}

// BaseURL is the loopback URL of a listener
func BaseURL(lis net.Listener) string {
	return "http://127.0.0.1:" + strconv.Itoa(boundPort(lis))
}

func boundPort(lis net.Listener) int {
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
