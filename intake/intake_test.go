package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/opsign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	submitted []chainmodel.AccountIntent
	tracked   map[string]bool
}

func newFakeSubmitter() *fakeSubmitter { return &fakeSubmitter{tracked: map[string]bool{}} }

func (f *fakeSubmitter) SubmitIntent(intent chainmodel.AccountIntent) {
	f.submitted = append(f.submitted, intent)
	f.tracked[intent.Address] = true
}

func (f *fakeSubmitter) HasIntentOrActive(address string) bool { return f.tracked[address] }

func signedRequest(t *testing.T, priv *btcec.PrivateKey, msg scanMessage) scanRequest {
	t.Helper()
	encoded, err := json.Marshal(msg)
	require.NoError(t, err)
	digest := sha256.Sum256(encoded)
	sig := ecdsa.Sign(priv, digest[:])
	return scanRequest{Message: msg, Signature: hex.EncodeToString(sig.Serialize())}
}

func doRequest(t *testing.T, h *Handler, sr scanRequest) scanResponse {
	t.Helper()
	body, err := json.Marshal(sr)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/scanAccount", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	var out scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestScanAccountAdmitsValidSignedRequest(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	verifier := opsign.FromPublicKey(priv.PubKey())

	submitter := newFakeSubmitter()
	h := New(submitter, verifier, nil)

	msg := scanMessage{Address: "addr1", InVk: "ivk1", OutVk: "ovk1", Head: chainmodel.BlockInfo{Hash: "h1", Sequence: 1}}
	resp := doRequest(t, h, signedRequest(t, priv, msg))

	assert.True(t, resp.Success)
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, "addr1", submitter.submitted[0].Address)
}

func TestScanAccountRejectsBadSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	verifier := opsign.FromPublicKey(other.PubKey())

	submitter := newFakeSubmitter()
	h := New(submitter, verifier, nil)

	msg := scanMessage{Address: "addr1"}
	resp := doRequest(t, h, signedRequest(t, priv, msg))

	assert.False(t, resp.Success)
	assert.Empty(t, submitter.submitted)
}

func TestScanAccountDuplicateIsIdempotent(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	verifier := opsign.FromPublicKey(priv.PubKey())

	submitter := newFakeSubmitter()
	h := New(submitter, verifier, nil)

	msg := scanMessage{Address: "addr1", Head: chainmodel.BlockInfo{Hash: "h1", Sequence: 1}}
	sr := signedRequest(t, priv, msg)

	first := doRequest(t, h, sr)
	second := doRequest(t, h, sr)

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Len(t, submitter.submitted, 1)
}
