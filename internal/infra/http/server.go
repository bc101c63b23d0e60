package http

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sigil/internal/claimscan"
	"sigil/internal/config"
	"sigil/internal/domain"
	"sigil/internal/infra/cachemem"
	"sigil/internal/infra/crypto"
	"sigil/internal/infra/db"
	"sigil/internal/infra/execstore"
	"sigil/internal/infra/keyring"
	"sigil/internal/infra/nonce"
	"sigil/internal/infra/policyopa"
	"sigil/internal/infra/ratelimit"
	"sigil/internal/infra/registry"
	"sigil/internal/usecase"
)

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *zap.Logger

	signUC     *usecase.SignExecution
	verifyUC   *usecase.VerifyExecution
	responseUC *usecase.VerifyResponse

	trust  usecase.TrustRegistry
	store  usecase.ExecutionStore
	nonces usecase.NonceLedger
	keys   usecase.Keyring

	adminAPIKey string
	initErr     error

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

// NewServer wires the full dependency graph from config: postgres-backed
// stores when a DSN is set, redis nonce ledger when an addr is set, memory
// fallbacks otherwise.
func NewServer(cfg config.Config, store *db.Store, logger *zap.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, r: r, logger: logger}
	s.initDeps(store)
	s.routes()
	return s
}

type ServerDeps struct {
	Sign        *usecase.SignExecution
	Verify      *usecase.VerifyExecution
	Response    *usecase.VerifyResponse
	Trust       usecase.TrustRegistry
	Store       usecase.ExecutionStore
	Nonces      usecase.NonceLedger
	Keys        usecase.Keyring
	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

// NewServerWithDeps builds a server from explicit collaborators; tests use
// it to inject fakes and pinned clocks.
func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		logger:      zap.NewNop(),
		signUC:      deps.Sign,
		verifyUC:    deps.Verify,
		responseUC:  deps.Response,
		trust:       deps.Trust,
		store:       deps.Store,
		nonces:      deps.Nonces,
		keys:        deps.Keys,
		adminAPIKey: deps.AdminAPIKey,
		rateLimiter: deps.RateLimiter,
	}
	s.rateLimitRequests = cfg.RateLimitRequests
	s.rateLimitWindow = cfg.RateLimitWindow()
	s.routes()
	return s
}

func (s *Server) initDeps(store *db.Store) {
	s.adminAPIKey = s.cfg.AdminAPIKey
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	cryptoSvc := &crypto.Service{}

	ring, err := keyring.NewFromSeed(s.cfg.SigningPrivateKeySeedHex, s.cfg.SigningPrivateKeyBase64)
	if err != nil {
		s.initErr = err
		return
	}
	s.keys = ring

	if store != nil && store.Available() {
		s.trust = db.NewTrustEntryRepository(store.DB)
		s.store = db.NewExecutionRepository(store.DB, s.cfg.ExecRetention)
	} else {
		s.trust = registry.NewMemoryRegistry()
		s.store = execstore.NewMemoryStore(s.cfg.ExecRetention)
	}

	if s.cfg.RedisAddr != "" {
		ledger, err := nonce.NewRedisLedger(nonce.RedisLedgerConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
			TTL:      s.cfg.NonceTTL(),
		})
		if err != nil {
			s.initErr = err
			return
		}
		s.nonces = ledger
	} else {
		s.nonces = nonce.NewMemoryLedger(nonce.MemoryLedgerConfig{TTL: s.cfg.NonceTTL()})
	}

	if err := s.registerOwnKey(context.Background(), ring); err != nil {
		s.initErr = err
		return
	}

	s.signUC = &usecase.SignExecution{
		Keys:   s.keys,
		Crypto: cryptoSvc,
		Nonces: s.nonces,
		Store:  s.store,
		Trust:  s.trust,
	}
	s.verifyUC = &usecase.VerifyExecution{
		Trust:    s.trust,
		Crypto:   cryptoSvc,
		Nonces:   s.nonces,
		Cache:    cachemem.New(),
		CacheTTL: s.cfg.VerifyCacheTTL(),
		NonceTTL: s.cfg.NonceTTL(),
	}

	patterns, err := claimscan.LoadPatterns(s.cfg.ClaimPatternsPath)
	if err != nil {
		s.initErr = err
		return
	}
	s.responseUC = &usecase.VerifyResponse{
		Extractor: claimscan.NewExtractor(claimscan.WithPatterns(patterns)),
		Matcher: &usecase.MatchClaims{
			Store: s.store,
			Config: usecase.MatcherConfig{
				Window:    s.cfg.MatchWindow(),
				Threshold: s.cfg.MatchThreshold,
			},
		},
		Policy: usecase.EnforcementConfig{
			Mode:            domain.EnforcementMode(s.cfg.EnforcementMode),
			BlockUnverified: s.cfg.BlockUnverified,
		},
	}
	if s.cfg.PolicyPath != "" {
		engine, err := policyopa.NewEngineFromPath(context.Background(), s.cfg.PolicyPath)
		if err != nil {
			s.initErr = err
			return
		}
		s.responseUC.Decisions = engine
	}

	s.initRateLimit()
}

// registerOwnKey publishes the daemon's signing key into the trust registry
// so self-signed executions verify without manual registration.
func (s *Server) registerOwnKey(ctx context.Context, ring *keyring.Ring) error {
	kp, err := ring.Active()
	if err != nil {
		return err
	}
	entry := domain.TrustEntry{
		KeyID:        kp.KeyID(),
		Alg:          kp.Algorithm(),
		PublicKey:    kp.PublicKey(),
		TrustLevel:   domain.TrustLevel(s.cfg.SigningKeyTrustLevel),
		RegisteredAt: time.Now().UTC(),
	}
	err = s.trust.Register(ctx, entry)
	if err != nil && !errors.Is(err, domain.ErrDuplicateKey) {
		return err
	}
	return nil
}

func (s *Server) initRateLimit() {
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	if s.rateLimitRequests <= 0 {
		return
	}
	if s.cfg.RedisAddr != "" {
		if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
			s.rateLimiter = limiter
			return
		}
	}
	s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
		MaxKeys: s.cfg.RateLimitMaxKeys,
	})
}

func (s *Server) routes() {
	s.r.Use(s.requestLog())
	s.r.Use(s.rateLimit())

	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.POST("/executions/sign", s.handleSign)
		v1.POST("/executions/verify", s.handleVerify)
		v1.GET("/executions/recent", s.handleRecentExecutions)
		v1.POST("/responses/verify", s.handleVerifyResponse)
		v1.GET("/keys/active", s.handleActiveKey)
		v1.GET("/keys/:key_id", s.handleLookupKey)
		v1.GET("/stats", s.handleStats)

		v1.POST("/keys", s.handleRegisterKey)
		v1.POST("/keys/:key_id/revoke", s.handleRevokeKey)
		v1.POST("/keys/rotate", s.handleRotateKey)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, 404, "NOT_FOUND", "route not found")
	})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		decision, err := s.rateLimiter.Allow(c.Request.Context(), c.ClientIP(), s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			c.Next()
			return
		}
		if !decision.Allowed {
			writeErrorCode(c, 429, "RATE_LIMITED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
