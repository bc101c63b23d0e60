package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sigil/internal/domain"
	"sigil/internal/infra/crypto"
	"sigil/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type signRequest struct {
	ToolID   string          `json:"tool_id"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output"`
	UseNonce bool            `json:"use_nonce"`
}

type verifyRequest struct {
	Execution    *domain.SignedExecution  `json:"execution,omitempty"`
	Executions   []domain.SignedExecution `json:"executions,omitempty"`
	ConsumeNonce bool                     `json:"consume_nonce"`
}

type verifyResponseBody struct {
	Result  *domain.VerificationResult  `json:"result,omitempty"`
	Results []domain.VerificationResult `json:"results,omitempty"`
}

type registerKeyRequest struct {
	Alg             string `json:"alg"`
	PublicKeyBase64 string `json:"public_key_base64"`
	TrustLevel      string `json:"trust_level"`
}

type revokeKeyRequest struct {
	Reason string `json:"reason"`
}

type rotateKeyRequest struct {
	Alg string `json:"alg"`
}

type keyResponse struct {
	KeyID           string     `json:"key_id"`
	Alg             string     `json:"alg"`
	PublicKeyBase64 string     `json:"public_key_base64"`
	TrustLevel      string     `json:"trust_level"`
	Revoked         bool       `json:"revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	Reason          string     `json:"revocation_reason,omitempty"`
}

type responseVerifyRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.initErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": s.initErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	exec, err := s.signUC.Execute(c.Request.Context(), usecase.SignExecutionRequest{
		ToolID:   req.ToolID,
		Input:    req.Input,
		Output:   req.Output,
		UseNonce: req.UseNonce,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exec)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	switch {
	case req.Execution != nil:
		result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyExecutionRequest{
			Execution:    *req.Execution,
			ConsumeNonce: req.ConsumeNonce,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, verifyResponseBody{Result: &result})
	case len(req.Executions) > 0:
		results, err := s.verifyUC.ExecuteBatch(c.Request.Context(), req.Executions, req.ConsumeNonce)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, verifyResponseBody{Results: results})
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "execution or executions is required")
	}
}

func (s *Server) handleVerifyResponse(c *gin.Context) {
	var req responseVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Text == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "text is required")
		return
	}
	out, err := s.responseUC.Execute(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRecentExecutions(c *gin.Context) {
	toolID := c.Query("tool_id")
	window := s.cfg.MatchWindow()
	if raw := c.Query("window_seconds"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "window_seconds must be a positive integer")
			return
		}
		window = time.Duration(secs) * time.Second
	}
	execs, err := s.store.Recent(c.Request.Context(), toolID, window)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}

func (s *Server) handleStats(c *gin.Context) {
	nonceStats, err := s.nonces.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	execStats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nonces":     nonceStats,
		"executions": execStats,
	})
}

func (s *Server) handleActiveKey(c *gin.Context) {
	kp, err := s.keys.Active()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key_id":            kp.KeyID(),
		"alg":               kp.Algorithm(),
		"public_key_base64": base64.StdEncoding.EncodeToString(kp.PublicKey()),
	})
}

func (s *Server) handleLookupKey(c *gin.Context) {
	entry, err := s.trust.Lookup(c.Request.Context(), c.Param("key_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, keyFromEntry(*entry))
}

func (s *Server) handleRegisterKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req registerKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	alg := domain.Algorithm(req.Alg)
	if alg != domain.AlgEd25519 && alg != domain.AlgRSAPSS {
		writeError(c, domain.ErrUnsupportedAlgorithm)
		return
	}
	pubKey, err := base64.StdEncoding.DecodeString(req.PublicKeyBase64)
	if err != nil || len(pubKey) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "public_key_base64 must be valid base64")
		return
	}
	level := domain.TrustLevel(req.TrustLevel)
	if level == "" {
		level = domain.TrustMedium
	}
	entry := domain.TrustEntry{
		KeyID:        crypto.KeyIDFromPublicKey(alg, pubKey),
		Alg:          alg,
		PublicKey:    pubKey,
		TrustLevel:   level,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.trust.Register(c.Request.Context(), entry); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, keyFromEntry(entry))
}

func (s *Server) handleRevokeKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	// Body is optional; a missing reason is recorded as empty.
	var req revokeKeyRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.trust.Revoke(c.Request.Context(), c.Param("key_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true, "key_id": c.Param("key_id")})
}

func (s *Server) handleRotateKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req rotateKeyRequest
	_ = c.ShouldBindJSON(&req)
	alg := domain.Algorithm(req.Alg)
	if alg == "" {
		alg = domain.AlgEd25519
	}
	kp, err := s.keys.Rotate(alg)
	if err != nil {
		writeError(c, err)
		return
	}
	entry := domain.TrustEntry{
		KeyID:        kp.KeyID(),
		Alg:          kp.Algorithm(),
		PublicKey:    kp.PublicKey(),
		TrustLevel:   domain.TrustLevel(s.cfg.SigningKeyTrustLevel),
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.trust.Register(c.Request.Context(), entry); err != nil && !errors.Is(err, domain.ErrDuplicateKey) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, keyFromEntry(entry))
}

func keyFromEntry(entry domain.TrustEntry) keyResponse {
	return keyResponse{
		KeyID:           entry.KeyID,
		Alg:             string(entry.Alg),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(entry.PublicKey),
		TrustLevel:      string(entry.TrustLevel),
		Revoked:         entry.Revoked,
		RevokedAt:       entry.RevokedAt,
		Reason:          entry.RevocationReason,
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNoActiveKey):
		status, code = http.StatusConflict, "NO_ACTIVE_KEY"
	case errors.Is(err, domain.ErrUnsupportedAlgorithm):
		status, code = http.StatusBadRequest, "UNSUPPORTED_ALGORITHM"
	case errors.Is(err, domain.ErrDuplicateKey):
		status, code = http.StatusConflict, "DUPLICATE_KEY"
	case errors.Is(err, domain.ErrKeyRevoked):
		status, code = http.StatusBadRequest, "KEY_REVOKED"
	case errors.Is(err, domain.ErrKeyNotFound):
		status, code = http.StatusNotFound, "KEY_NOT_FOUND"
	case errors.Is(err, domain.ErrReplay):
		status, code = http.StatusConflict, "NONCE_REPLAYED"
	case errors.Is(err, domain.ErrNonceExpired):
		status, code = http.StatusBadRequest, "NONCE_EXPIRED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
