// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package transport

import (
	"errors"
	"io"
)

// isEOF reports whether err represents a clean peer close, which a TCP
// read surfaces as io.EOF (or, on some platforms, a reset that net also
// folds into an io.EOF-equivalent once the connection has been fully
// drained).
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
