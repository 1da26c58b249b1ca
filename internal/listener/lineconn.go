package listener

import (
	"bytes"
	"io"
)

// lineConn normalizes line endings for console sessions. Reads turn \r\n and
// bare \r into \n, including a \r\n pair split across two reads. Writes turn
// \n into \r\n.
type lineConn struct {
	rw     io.ReadWriter
	lastCR bool
}

func newLineConn(rw io.ReadWriter) io.ReadWriter {
	return &lineConn{rw: rw}
}

func (c *lineConn) Read(p []byte) (int, error) {
	for {
		n, err := c.rw.Read(p)
		out := p[:0]
		for _, b := range p[:n] {
			switch {
			case b == '\n' && c.lastCR:
				c.lastCR = false
			case b == '\r':
				c.lastCR = true
				out = append(out, '\n')
			default:
				c.lastCR = false
				out = append(out, b)
			}
		}
		// A read that was only the tail of a split pair carries no data.
		if len(out) > 0 || n == 0 || err != nil {
			return len(out), err
		}
	}
}

func (c *lineConn) Write(p []byte) (int, error) {
	_, err := c.rw.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	return len(p), err
}
