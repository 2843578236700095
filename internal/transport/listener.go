// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"context"
	"net"

	"golang.org/x/net/netutil"
)

// Listen opens a TCP listener for the switch control channel at addr,
// capped to maxConns simultaneous connections via netutil.LimitListener
// so a storm of reconnecting switches cannot exhaust file descriptors
// the rest of the engine needs.
func Listen(ctx context.Context, addr string, maxConns int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		return ln, nil
	}
	return netutil.LimitListener(ln, maxConns), nil
}
