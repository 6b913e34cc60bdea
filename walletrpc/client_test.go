package walletrpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// newTestClient wires a Client to an in-memory fasthttp server so no real
// socket is opened; handler decides the response for every request.
func newTestClient(t *testing.T, handler fasthttp.RequestHandler) (*Client, func()) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() {
		_ = srv.Serve(ln)
	}()

	c := New("test")
	c.http = &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	return c, func() { _ = ln.Close() }
}

func TestGetLatestBlockDecodesEnvelope(t *testing.T) {
	c, closeFn := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(200)
		ctx.SetBody([]byte(`{"status":200,"data":{"currentBlockIdentifier":{"index":"10","hash":"h10"},"genesisBlockIdentifier":{"index":"0","hash":"h0"}}}`))
	})
	defer closeFn()

	resp, err := c.GetLatestBlock()
	require.NoError(t, err)
	assert.Equal(t, "h10", resp.CurrentBlockIdentifier.Hash)
	assert.Equal(t, "h0", resp.GenesisBlockIdentifier.Hash)
}

func TestPostMapsNon2xxToError(t *testing.T) {
	c, closeFn := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(400)
		ctx.SetBody([]byte(`{"code":"account-exists","message":"already registered"}`))
	})
	defer closeFn()

	err := c.SetScanning(SetScanningRequest{Account: "a1", Enabled: true})
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeAccountExists, rpcErr.Code)
	assert.Equal(t, 400, rpcErr.Status)
}

func TestSetAccountHeadSendsScanCompleteFlag(t *testing.T) {
	var gotBody []byte
	c, closeFn := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		gotBody = append([]byte{}, ctx.PostBody()...)
		ctx.SetStatusCode(200)
		ctx.SetBody([]byte(`{"status":200,"data":null}`))
	})
	defer closeFn()

	err := c.SetAccountHead(SetAccountHeadRequest{
		Account:      "a1",
		Start:        "1",
		End:          "5",
		ScanComplete: true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(gotBody), `"scanComplete":true`)
}
