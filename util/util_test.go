package util_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/habitat-network/bskykit/util"
	"github.com/stretchr/testify/require"
)

type mockBody struct {
	io.Reader
	closed   bool
	closeErr error
}

func (m *mockBody) Close() error {
	m.closed = true
	return m.closeErr
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestDrainAndClose(t *testing.T) {
	body := &mockBody{Reader: strings.NewReader("leftover")}
	util.DrainAndClose(body, func(e error) {
		require.Fail(t, "should not be called with nil error")
	})
	require.True(t, body.closed)
	n, err := body.Read(make([]byte, 8))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)

	var got []string
	body = &mockBody{Reader: failingReader{}, closeErr: errors.New("close failed")}
	util.DrainAndClose(body, func(e error) {
		got = append(got, e.Error())
	})
	require.True(t, body.closed)
	require.Equal(t, []string{"read failed", "close failed"}, got)
}

func TestDrainAndClose_NilBody(t *testing.T) {
	util.DrainAndClose(nil, func(e error) {
		require.Fail(t, "nil body should be ignored")
	})
}
