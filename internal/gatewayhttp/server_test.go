package gatewayhttp

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agent-safe/splcap/internal/splcrypto"
)

func newTestServer(t *testing.T, seedHex string) *httptest.Server {
	t.Helper()
	srv := &Server{
		Logger:        log.New(io.Discard, "", 0),
		Authenticator: NewAuthenticator(map[string]string{"ops": "sekret"}, 0, 0, 0, nil),
		RateLimiter:   NewRateLimiter(map[string]RateLimit{"mint": {RatePerSecond: 100, Burst: 100}, "verify": {RatePerSecond: 100, Burst: 100}}),
		Observability: NewObservability(ObservabilityConfig{}, nil),
		CORSConfig:    CORSConfig{},
		SigningSeedHex: seedHex,
		DefaultGas:     10_000,
	}
	return httptest.NewServer(srv.Router())
}

func signedRequest(t *testing.T, method, url, path string, body []byte) *http.Request {
	t.Helper()
	now := time.Now().UTC()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	nonce := hex.EncodeToString([]byte(path + timestamp + method))
	sig := ComputeSignature("sekret", timestamp, nonce, method, path, body)

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(HeaderAPIKey, "ops")
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServerHealthzIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t, "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerMintRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t, "")
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/mint", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerMintAndVerifyRoundTrip(t *testing.T) {
	_, seedHex, err := splcrypto.GenerateKeypair()
	require.NoError(t, err)

	srv := newTestServer(t, seedHex)
	defer srv.Close()

	mintBody, err := json.Marshal(map[string]string{"policy": `(and true true)`})
	require.NoError(t, err)
	req := signedRequest(t, http.MethodPost, srv.URL+"/v1/mint", "/v1/mint", mintBody)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mintedToken map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mintedToken))
	require.Equal(t, `(and true true)`, mintedToken["policy"])

	verifyBody, err := json.Marshal(map[string]interface{}{"token": mintedToken})
	require.NoError(t, err)
	// The auth layer rejects a timestamp that does not increase per API key,
	// so the verify request is signed in a later second than the mint request.
	time.Sleep(time.Second)
	verifyReq := signedRequest(t, http.MethodPost, srv.URL+"/v1/verify", "/v1/verify", verifyBody)

	verifyResp, err := http.DefaultClient.Do(verifyReq)
	require.NoError(t, err)
	defer verifyResp.Body.Close()
	require.Equal(t, http.StatusOK, verifyResp.StatusCode)

	var decoded verifyResponse
	require.NoError(t, json.NewDecoder(verifyResp.Body).Decode(&decoded))
	require.True(t, decoded.Allow)
	require.Empty(t, decoded.Error)
}

func TestServerVerifyRejectsMissingToken(t *testing.T) {
	_, seedHex, err := splcrypto.GenerateKeypair()
	require.NoError(t, err)
	srv := newTestServer(t, seedHex)
	defer srv.Close()

	body := []byte(`{}`)
	req := signedRequest(t, http.MethodPost, srv.URL+"/v1/verify", "/v1/verify", body)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
