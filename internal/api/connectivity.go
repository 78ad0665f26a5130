// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package api

import (
	"net"
	"time"
)

// probeConnectivity reports whether the host can currently reach the
// network by attempting a short-lived outbound TCP dial, the same
// socket-level probe the original Rust implementation's bluetooth/wifi
// stubs describe rather than relying on a platform-specific interface
// query.
func probeConnectivity() bool {
	conn, err := net.DialTimeout("tcp", "1.1.1.1:53", 2*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
