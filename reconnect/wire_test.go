package reconnect

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-vreconnect/codec"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

type bufStream struct {
	bytes.Buffer
}

func (*bufStream) Close() error { return nil }

func TestConduitMessages(t *testing.T) {
	h := vtree.HashLeaf([]byte("k"), []byte("v"))
	state := vtree.TreeState{FirstLeafPath: 7, LastLeafPath: 13}
	requests := []*Request{
		{Path: vtree.RootPath, Hash: &vtree.NullHash},
		{Path: 12, Hash: &h},
		{Path: vtree.InvalidPath},
	}
	responses := []*Response{
		{Path: vtree.RootPath, Root: &state},
		{Path: 3, IsClean: true},
		{Path: 10, Leaf: &LeafPayload{Key: []byte("k"), Value: []byte("v")}},
		{Path: 11, Leaf: &LeafPayload{Key: []byte("k2"), Value: []byte("v2")}},
		{Path: vtree.InvalidPath},
	}

	var s bufStream
	c := newConduit(&s, 16)
	for _, req := range requests {
		require.NoError(t, c.send(req))
	}
	for _, resp := range responses {
		require.NoError(t, c.send(resp))
	}
	require.NotZero(t, c.buffered())
	require.NoError(t, c.closeWrite())
	require.Zero(t, c.buffered())

	for _, expected := range requests {
		req, err := c.nextRequest()
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(expected, req))
	}
	for _, expected := range responses {
		resp, err := c.nextResponse()
		require.NoError(t, err)
		require.Equal(t, expected.IsTerminator(), resp.IsTerminator())
		require.Empty(t, cmp.Diff(expected, resp))
	}
	_, err := c.nextResponse()
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestConduitViolations(t *testing.T) {
	t.Run("wrong message type", func(t *testing.T) {
		var s bufStream
		c := newConduit(&s, 16)
		require.NoError(t, c.send(&Request{Path: 1, Hash: &vtree.NullHash}))
		require.NoError(t, c.flush())
		_, err := c.nextResponse()
		require.ErrorIs(t, err, ErrProtocolViolation)
	})
	t.Run("unknown message type", func(t *testing.T) {
		var s bufStream
		s.WriteByte(0x42)
		_, err := newConduit(&s, 16).nextRequest()
		require.ErrorIs(t, err, ErrProtocolViolation)
	})
	t.Run("truncated message", func(t *testing.T) {
		var s bufStream
		s.WriteByte(byte(MessageTypeResponse))
		b := codec.MustEncode(&Response{Path: 5, Leaf: &LeafPayload{Key: []byte("key"), Value: []byte("value")}})
		s.Write(b[:len(b)-2])
		_, err := newConduit(&s, 16).nextResponse()
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrProtocolViolation)
	})
	t.Run("oversized key", func(t *testing.T) {
		_, err := codec.Encode(&Response{Path: 5, Leaf: &LeafPayload{Key: make([]byte, vtree.MaxKeySize+1)}})
		require.Error(t, err)
	})
}

func TestConduitCloseWrite(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	peer, ok := <-accepted
	require.True(t, ok)
	defer peer.Close()

	c := newConduit(conn, 64)
	require.NoError(t, c.send(&Request{Path: vtree.InvalidPath}))
	require.NoError(t, c.closeWrite())

	pc := newConduit(peer, 64)
	req, err := pc.nextRequest()
	require.NoError(t, err)
	require.True(t, req.IsTerminator())
	// the write side is closed, so the peer sees the end of the stream
	_, err = pc.r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}
