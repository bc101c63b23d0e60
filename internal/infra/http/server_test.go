package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"sigil/internal/claimscan"
	"sigil/internal/config"
	"sigil/internal/domain"
	"sigil/internal/infra/cachemem"
	"sigil/internal/infra/crypto"
	"sigil/internal/infra/execstore"
	"sigil/internal/infra/keyring"
	"sigil/internal/infra/nonce"
	"sigil/internal/infra/ratelimit"
	"sigil/internal/infra/registry"
	"sigil/internal/usecase"
)

const testAdminKey = "test-admin-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config, deps *ServerDeps)) *Server {
	t.Helper()

	kp, err := crypto.GenerateKeyPair(domain.AlgEd25519)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ring := keyring.New()
	ring.Add(kp, true)

	trust := registry.NewMemoryRegistry()
	if err := trust.Register(context.Background(), domain.TrustEntry{
		KeyID:      kp.KeyID(),
		Alg:        kp.Algorithm(),
		PublicKey:  kp.PublicKey(),
		TrustLevel: domain.TrustHigh,
	}); err != nil {
		t.Fatalf("register key: %v", err)
	}

	store := execstore.NewMemoryStore(0)
	ledger := nonce.NewMemoryLedger(nonce.MemoryLedgerConfig{})
	cryptoSvc := crypto.NewService()

	deps := ServerDeps{
		Sign: &usecase.SignExecution{
			Keys:   ring,
			Crypto: cryptoSvc,
			Nonces: ledger,
			Store:  store,
			Trust:  trust,
		},
		Verify: &usecase.VerifyExecution{
			Trust:  trust,
			Crypto: cryptoSvc,
			Nonces: ledger,
			Cache:  cachemem.New(),
		},
		Response: &usecase.VerifyResponse{
			Extractor: claimscan.NewExtractor(),
			Matcher:   &usecase.MatchClaims{Store: store, Config: usecase.MatcherConfig{}},
			Policy:    usecase.EnforcementConfig{Mode: domain.ModeStrict},
		},
		Trust:       trust,
		Store:       store,
		Nonces:      ledger,
		Keys:        ring,
		AdminAPIKey: testAdminKey,
	}
	cfg := config.Config{MatchWindowSeconds: 120}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return NewServerWithDeps(cfg, deps)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func signOne(t *testing.T, s *Server, toolID string, useNonce bool) domain.SignedExecution {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/v1/executions/sign", gin.H{
		"tool_id":   toolID,
		"input":     gin.H{"city": "London"},
		"output":    gin.H{"temp": 18},
		"use_nonce": useNonce,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("sign: status %d body %s", w.Code, w.Body.String())
	}
	var exec domain.SignedExecution
	decodeInto(t, w, &exec)
	return exec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := doJSON(t, s, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSignVerifyRoundTripOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	exec := signOne(t, s, "weather_api", false)
	if exec.Signature == "" || exec.KeyID == "" {
		t.Fatalf("incomplete signed execution: %+v", exec)
	}

	w := doJSON(t, s, http.MethodPost, "/v1/executions/verify", gin.H{"execution": exec}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", w.Code, w.Body.String())
	}
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if body.Result == nil || !body.Result.Valid {
		t.Fatalf("verify result: %+v", body.Result)
	}
	if body.Result.TrustLevel != domain.TrustHigh {
		t.Fatalf("trust level = %q", body.Result.TrustLevel)
	}
}

func TestVerifyTamperedExecutionOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	exec := signOne(t, s, "weather_api", false)
	exec.Output = json.RawMessage(`{"temp":30}`)

	w := doJSON(t, s, http.MethodPost, "/v1/executions/verify", gin.H{"execution": exec}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d", w.Code)
	}
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if body.Result.Valid || body.Result.ErrorKind != domain.VerifyErrSignatureInvalid {
		t.Fatalf("result = %+v, want signature_invalid", body.Result)
	}
}

func TestBatchVerifyOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	good := signOne(t, s, "weather_api", false)
	bad := good
	bad.Output = json.RawMessage(`{"temp":30}`)

	w := doJSON(t, s, http.MethodPost, "/v1/executions/verify", gin.H{
		"executions": []domain.SignedExecution{bad, good},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("batch verify: status %d", w.Code)
	}
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if len(body.Results) != 2 || body.Results[0].Valid || !body.Results[1].Valid {
		t.Fatalf("batch results: %+v", body.Results)
	}
}

func TestNonceReplayOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	exec := signOne(t, s, "payments_api", true)
	if exec.Nonce == "" {
		t.Fatal("nonce missing")
	}

	req := gin.H{"execution": exec, "consume_nonce": true}
	w := doJSON(t, s, http.MethodPost, "/v1/executions/verify", req, nil)
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if !body.Result.Valid {
		t.Fatalf("first verify: %+v", body.Result)
	}

	w = doJSON(t, s, http.MethodPost, "/v1/executions/verify", req, nil)
	decodeInto(t, w, &body)
	if body.Result.Valid || body.Result.ErrorKind != domain.VerifyErrReplay {
		t.Fatalf("replay: %+v, want nonce_replayed", body.Result)
	}
}

func TestRevokeThenVerifyOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	exec := signOne(t, s, "weather_api", false)

	w := doJSON(t, s, http.MethodPost, "/v1/keys/"+exec.KeyID+"/revoke",
		gin.H{"reason": "credential rotation"},
		map[string]string{"X-Admin-Key": testAdminKey})
	if w.Code != http.StatusOK {
		t.Fatalf("revoke: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/v1/executions/verify", gin.H{"execution": exec}, nil)
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if body.Result.Valid || body.Result.ErrorKind != domain.VerifyErrKeyRevoked {
		t.Fatalf("post-revocation result: %+v", body.Result)
	}

	// The registry keeps the revoked entry for audit.
	w = doJSON(t, s, http.MethodGet, "/v1/keys/"+exec.KeyID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup revoked key: status %d", w.Code)
	}
	var key keyResponse
	decodeInto(t, w, &key)
	if !key.Revoked || key.Reason != "credential rotation" {
		t.Fatalf("revoked entry: %+v", key)
	}
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-Admin-Key": "nope"}, http.StatusUnauthorized},
		{"correct key", map[string]string{"X-Admin-Key": testAdminKey}, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/v1/keys/rotate", gin.H{"alg": "ed25519"}, tc.headers)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestAdminDisabledWhenNoKeyConfigured(t *testing.T) {
	s := newTestServer(t, func(_ *config.Config, deps *ServerDeps) {
		deps.AdminAPIKey = ""
	})
	w := doJSON(t, s, http.MethodPost, "/v1/keys/rotate", nil, map[string]string{"X-Admin-Key": "anything"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRegisterExternalKey(t *testing.T) {
	s := newTestServer(t, nil)

	kp, err := crypto.GenerateKeyPair(domain.AlgEd25519)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	body := gin.H{
		"alg":               "ed25519",
		"public_key_base64": base64.StdEncoding.EncodeToString(kp.PublicKey()),
		"trust_level":       "low",
	}
	headers := map[string]string{"X-Admin-Key": testAdminKey}

	w := doJSON(t, s, http.MethodPost, "/v1/keys", body, headers)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	var key keyResponse
	decodeInto(t, w, &key)
	if key.KeyID != kp.KeyID() || key.TrustLevel != "low" {
		t.Fatalf("registered key: %+v", key)
	}

	if w = doJSON(t, s, http.MethodPost, "/v1/keys", body, headers); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", w.Code)
	}

	bad := gin.H{"alg": "dsa", "public_key_base64": body["public_key_base64"]}
	if w = doJSON(t, s, http.MethodPost, "/v1/keys", bad, headers); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported alg: status %d, want 400", w.Code)
	}
}

func TestRotateRegistersNewKey(t *testing.T) {
	s := newTestServer(t, nil)
	before := signOne(t, s, "weather_api", false)

	w := doJSON(t, s, http.MethodPost, "/v1/keys/rotate", gin.H{"alg": "ed25519"},
		map[string]string{"X-Admin-Key": testAdminKey})
	if w.Code != http.StatusCreated {
		t.Fatalf("rotate: status %d body %s", w.Code, w.Body.String())
	}
	var rotated keyResponse
	decodeInto(t, w, &rotated)
	if rotated.KeyID == before.KeyID {
		t.Fatal("rotation did not change the active key")
	}

	// New signatures come from the rotated key and still verify.
	after := signOne(t, s, "weather_api", false)
	if after.KeyID != rotated.KeyID {
		t.Fatalf("signing key = %q, want rotated %q", after.KeyID, rotated.KeyID)
	}
	w = doJSON(t, s, http.MethodPost, "/v1/executions/verify", gin.H{"execution": after}, nil)
	var body verifyResponseBody
	decodeInto(t, w, &body)
	if !body.Result.Valid {
		t.Fatalf("post-rotation verify: %+v", body.Result)
	}
}

func TestVerifyResponseEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	signOne(t, s, "weather_api", false)

	w := doJSON(t, s, http.MethodPost, "/v1/responses/verify", gin.H{
		"text": "I called weather_api and the temperature in London is 18°C.",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var out usecase.VerifyResponseResult
	decodeInto(t, w, &out)
	if out.Summary.VerifiedClaims == 0 {
		t.Fatalf("no verified claims: %+v", out.Summary)
	}
	if out.Summary.Action != domain.ActionPass {
		t.Fatalf("action = %q, want pass", out.Summary.Action)
	}

	if w = doJSON(t, s, http.MethodPost, "/v1/responses/verify", gin.H{"text": ""}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty text: status %d, want 400", w.Code)
	}
}

func TestRecentExecutionsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	signOne(t, s, "weather_api", false)
	signOne(t, s, "stock_api", false)

	w := doJSON(t, s, http.MethodGet, "/v1/executions/recent?tool_id=weather_api", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Executions []domain.SignedExecution `json:"executions"`
	}
	decodeInto(t, w, &out)
	if len(out.Executions) != 1 || out.Executions[0].ToolID != "weather_api" {
		t.Fatalf("executions: %+v", out.Executions)
	}

	if w = doJSON(t, s, http.MethodGet, "/v1/executions/recent?window_seconds=bogus", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad window: status %d, want 400", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	signOne(t, s, "weather_api", true)

	w := doJSON(t, s, http.MethodGet, "/v1/stats", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var out struct {
		Nonces     nonce.Stats     `json:"nonces"`
		Executions execstore.Stats `json:"executions"`
	}
	decodeInto(t, w, &out)
	if out.Nonces.Issued != 1 || out.Executions.Recorded != 1 {
		t.Fatalf("stats: %+v", out)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config, deps *ServerDeps) {
		cfg.RateLimitRequests = 2
		cfg.RateLimitWindowSeconds = 60
		deps.RateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{})
	})

	for i := 0; i < 2; i++ {
		if w := doJSON(t, s, http.MethodGet, "/healthz", nil, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := doJSON(t, s, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp errorResponse
	decodeInto(t, w, &resp)
	if resp.Code != "RATE_LIMITED" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	w := doJSON(t, s, http.MethodGet, "/v1/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestActiveKeyEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := doJSON(t, s, http.MethodGet, "/v1/keys/active", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		KeyID           string `json:"key_id"`
		Alg             string `json:"alg"`
		PublicKeyBase64 string `json:"public_key_base64"`
	}
	decodeInto(t, w, &out)
	if out.KeyID == "" || out.Alg != string(domain.AlgEd25519) || out.PublicKeyBase64 == "" {
		t.Fatalf("active key: %+v", out)
	}

	if w = doJSON(t, s, http.MethodGet, "/v1/keys/"+out.KeyID, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("lookup active key: status %d", w.Code)
	}
}
