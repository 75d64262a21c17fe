package reconnect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spacemeshos/go-vreconnect/codec"
)

type sendable interface {
	codec.Encodable
	Type() MessageType
}

// conduit buffers messages written to the stream until flushed. Writes may
// come from several goroutines, reads from just one.
type conduit struct {
	stream Stream
	r      *bufio.Reader

	mu sync.Mutex
	w  *bufio.Writer
}

func newConduit(stream Stream, bufSize int) *conduit {
	return &conduit{
		stream: stream,
		r:      bufio.NewReaderSize(stream, bufSize),
		w:      bufio.NewWriterSize(stream, bufSize),
	}
}

func (c *conduit) send(m sendable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.w.WriteByte(byte(m.Type())); err != nil {
		return err
	}
	_, err := codec.EncodeTo(c.w, m)
	return err
}

func (c *conduit) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Flush()
}

// buffered returns the number of bytes waiting to be flushed.
func (c *conduit) buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Buffered()
}

// closeWrite flushes the pending messages and closes the stream for writing
// if the stream supports it.
func (c *conduit) closeWrite() error {
	if err := c.flush(); err != nil {
		return err
	}
	if wc, ok := c.stream.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}

func (c *conduit) expect(mtype MessageType) error {
	b, err := c.r.ReadByte()
	switch {
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: stream closed before terminator", ErrProtocolViolation)
	case err != nil:
		return err
	case MessageType(b) != mtype:
		return protocolViolation("unexpected message type %02x", b)
	}
	return nil
}

func (c *conduit) nextRequest() (*Request, error) {
	if err := c.expect(MessageTypeRequest); err != nil {
		return nil, err
	}
	var req Request
	if _, err := codec.DecodeFrom(c.r, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func (c *conduit) nextResponse() (*Response, error) {
	if err := c.expect(MessageTypeResponse); err != nil {
		return nil, err
	}
	var resp Response
	if _, err := codec.DecodeFrom(c.r, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
