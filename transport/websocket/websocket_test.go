package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/wiremux/wiremux/transport"
)

func TestTransportRoundTrip(t *testing.T) {
	received := make(chan []byte, 4)
	closed := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Accept(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		assert.NotEmpty(t, tr.ID())
		assert.Same(t, r, tr.Request())

		tr.Open(&transport.Callbacks{
			OnData: func(data []byte) {
				received <- data
				if err := tr.Write([]byte("pong"), nil); err != nil {
					t.Error(err)
				}
				if err := tr.Write([]byte{0xFF}, &transport.WriteOptions{Binary: true}); err != nil {
					t.Error(err)
				}
			},
			OnClose: func(reason string, err error) {
				closed <- reason
			},
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("ping"), data)
	case <-ctx.Done():
		t.Fatal("server never received the frame")
	}

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, []byte("pong"), data)

	typ, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)
	assert.Equal(t, []byte{0xFF}, data)

	conn.Close(websocket.StatusNormalClosure, "")
	select {
	case reason := <-closed:
		assert.Equal(t, "transport close", reason)
	case <-ctx.Done():
		t.Fatal("close was never observed")
	}
}

func TestGenerateBase64ID(t *testing.T) {
	a, err := transport.GenerateBase64ID(transport.Base64IDSize)
	require.NoError(t, err)
	b, err := transport.GenerateBase64ID(transport.Base64IDSize)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
