package guard

import (
	"net/http"
)

// ResponseGuard is a wrapper around http.ResponseWriter that can be halted.
// Once halted, all further header and body writes are discarded,
// so nothing can follow a response that was meant to be final.
type ResponseGuard struct {
	rw           http.ResponseWriter
	status       int
	wroteHeaders bool
	halted       bool
	discarded    int
	// called for every discarded write, with the number of bytes dropped
	onDiscard func(n int)
}

// Implementation of http.ResponseWriter
func (g *ResponseGuard) Header() http.Header {
	if g.halted {
		// hand out a detached header so late changes do not reach the client
		return http.Header{}
	}
	return g.rw.Header()
}

// Implementation of http.ResponseWriter
func (g *ResponseGuard) WriteHeader(statusCode int) {
	if g.halted {
		g.discard(0)
		return
	}
	if g.wroteHeaders {
		return
	}
	g.wroteHeaders = true
	g.status = statusCode
	g.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (g *ResponseGuard) Write(b []byte) (int, error) {
	if g.halted {
		g.discard(len(b))
		// report success, the handler is not expected to handle this
		return len(b), nil
	}
	if !g.wroteHeaders {
		g.WriteHeader(http.StatusOK)
	}
	return g.rw.Write(b)
}

// Flush implements http.Flusher if the underlying writer does.
func (g *ResponseGuard) Flush() {
	if g.halted {
		return
	}
	if f, ok := g.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying http.ResponseWriter (see http.ResponseController).
func (g *ResponseGuard) Unwrap() http.ResponseWriter {
	return g.rw
}

// Halt stops all further writes.
func (g *ResponseGuard) Halt() {
	g.halted = true
}

// Halted reports whether the response was halted.
func (g *ResponseGuard) Halted() bool {
	return g.halted
}

// StatusCode returns the status code written so far, or zero.
func (g *ResponseGuard) StatusCode() int {
	return g.status
}

// Discarded returns the number of writes dropped after halting.
func (g *ResponseGuard) Discarded() int {
	return g.discarded
}

func (g *ResponseGuard) discard(n int) {
	g.discarded++
	if g.onDiscard != nil {
		g.onDiscard(n)
	}
}

// New returns a ResponseGuard writing to w.
// If w already is a ResponseGuard, it is returned as is.
// The optional onDiscard callback is called for every write dropped after halting.
func New(w http.ResponseWriter, onDiscard ...func(n int)) *ResponseGuard {
	if g, ok := w.(*ResponseGuard); ok {
		return g
	}
	g := &ResponseGuard{rw: w}
	if len(onDiscard) == 1 {
		g.onDiscard = onDiscard[0]
	}
	return g
}

// Halt halts w if it is a ResponseGuard.
// It reports whether w was halted.
func Halt(w http.ResponseWriter) bool {
	if g, ok := w.(*ResponseGuard); ok {
		g.Halt()
		return true
	}
	return false
}
