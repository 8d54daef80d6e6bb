package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claimrails/internal/claimcode"
	"claimrails/internal/claimmeta"
	"claimrails/internal/config"
	"claimrails/internal/escrow"
	"claimrails/internal/hmacauth"
	"claimrails/internal/idempotency"
	"claimrails/internal/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Server exposes the claim flows over HTTP: create (sender side), lookup and
// redeem (recipient side), plus the owner-only sweep and the usual health
// and metrics endpoints.
type Server struct {
	cfg         *config.Config
	escrow      escrow.Client
	store       idempotency.Store
	meta        claimmeta.Store
	owner       common.Address
	hmac        *hmacauth.Verifier
	adminHMAC   *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	log         zerolog.Logger
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.Config, esc escrow.Client, store idempotency.Store, meta claimmeta.Store, log zerolog.Logger) *Server {
	hmacVerifier := &hmacauth.Verifier{
		Secret:  cfg.HMACSecret,
		MaxSkew: cfg.HMACClockSkew,
	}

	adminVerifier := &hmacauth.Verifier{
		Secret:          cfg.AdminHMACSecret,
		MaxSkew:         cfg.HMACClockSkew,
		SignatureHeader: "X-Admin-Signature",
		TimestampHeader: "X-Admin-Timestamp",
	}

	metrics := newMetricsRegistry()

	s := &Server{
		cfg:       cfg,
		escrow:    esc,
		store:     store,
		meta:      meta,
		owner:     common.HexToAddress(cfg.OwnerAddress),
		hmac:      hmacVerifier,
		adminHMAC: adminVerifier,
		metrics:   metrics,
		log:       log,
	}

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}
	if checker, ok := esc.(escrow.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/claims", s.hmac.Middleware(http.HandlerFunc(s.handleCreateClaim)))
	mux.Handle("/api/v1/claims/", s.hmac.Middleware(http.HandlerFunc(s.handleClaimSubpath)))
	mux.Handle("/api/v1/admin/sweep", s.adminHMAC.Middleware(http.HandlerFunc(s.handleSweep)))
	mux.Handle("/api/v1/metrics", metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           s.requestLogMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type claimMetaPayload struct {
	SenderUsername    string          `json:"senderUsername"`
	RecipientUsername string          `json:"recipientUsername"`
	MatchData         json.RawMessage `json:"matchData,omitempty"`
}

type createClaimRequest struct {
	ClaimCodeHash string            `json:"claimCodeHash"`
	Amount        string            `json:"amount"` // human units, converted here
	Recipient     string            `json:"recipient"`
	Sender        string            `json:"sender"`
	Message       string            `json:"message"`
	Meta          *claimMetaPayload `json:"meta,omitempty"`
}

type createClaimResponse struct {
	ClaimCodeHash string `json:"claimCodeHash"`
	Amount        string `json:"amount"` // base units
	DisplayAmount string `json:"displayAmount"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash,omitempty"`
}

type redeemRequest struct {
	ClaimCode     string `json:"claimCode,omitempty"`
	ClaimCodeHash string `json:"claimCodeHash,omitempty"`
	Claimant      string `json:"claimant"`
}

type redeemResponse struct {
	ClaimCodeHash string `json:"claimCodeHash"`
	Amount        string `json:"amount"`
	DisplayAmount string `json:"displayAmount"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash,omitempty"`
}

type claimInfoResponse struct {
	ClaimCodeHash string            `json:"claimCodeHash"`
	Amount        string            `json:"amount"`
	DisplayAmount string            `json:"displayAmount"`
	Recipient     string            `json:"recipient"`
	Claimed       bool              `json:"claimed"`
	Message       string            `json:"message"`
	Sender        string            `json:"sender"`
	Meta          *claimmeta.Record `json:"meta,omitempty"`
}

type sweepRequest struct {
	Token string `json:"token"`
}

type sweepResponse struct {
	Token  string `json:"token"`
	Amount string `json:"amount,omitempty"`
	Status string `json:"status"`
	TxHash string `json:"txHash,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing X-Idempotency-Key header"), "BAD_REQUEST")
		return
	}

	ctx := r.Context()

	if existing, _ := s.store.Get(ctx, key); existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.StatusCode)
		_, _ = w.Write(existing.Response)
		s.metrics.incCreated("cached")
		return
	}

	var payload createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json payload"), "BAD_REQUEST")
		return
	}

	hash, err := parseClaimHash(payload.ClaimCodeHash)
	if err != nil {
		s.metrics.incCreated("rejected")
		writeError(w, http.StatusBadRequest, err, "BAD_REQUEST")
		return
	}
	if !common.IsHexAddress(payload.Recipient) {
		s.metrics.incCreated("rejected")
		writeError(w, http.StatusBadRequest, errors.New("invalid recipient address"), "BAD_REQUEST")
		return
	}
	if !common.IsHexAddress(payload.Sender) {
		s.metrics.incCreated("rejected")
		writeError(w, http.StatusBadRequest, errors.New("invalid sender address"), "BAD_REQUEST")
		return
	}

	amount, err := units.Parse(payload.Amount, s.cfg.TokenDecimals)
	if err != nil {
		s.metrics.incCreated("rejected")
		writeError(w, http.StatusBadRequest, err, "INVALID_AMOUNT")
		return
	}

	result, err := s.escrow.CreateClaim(ctx, escrow.CreateClaimRequest{
		Sender:        common.HexToAddress(payload.Sender),
		ClaimCodeHash: hash,
		Amount:        amount,
		Recipient:     common.HexToAddress(payload.Recipient),
		Message:       payload.Message,
	})
	if err != nil {
		s.metrics.incCreated("failed")
		writeEscrowError(w, err)
		return
	}

	s.saveMeta(ctx, hash, payload)

	respBody := createClaimResponse{
		ClaimCodeHash: hash.Hex(),
		Amount:        amount.String(),
		DisplayAmount: units.Format(amount, s.cfg.TokenDecimals),
		Status:        "created",
		TxHash:        result.TxHash,
	}
	b, _ := json.Marshal(respBody)

	record := idempotency.Record{
		StatusCode: http.StatusCreated,
		Response:   b,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(s.cfg.IdempotencyWindow),
	}
	_ = s.store.Save(ctx, key, record)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(b)
	s.metrics.incCreated("created")
}

// handleClaimSubpath serves /api/v1/claims/redeem (POST) and
// /api/v1/claims/{code-or-hash} (GET).
func (s *Server) handleClaimSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/claims/")
	if rest == "redeem" {
		s.handleRedeem(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleLookup(w, r, rest)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	hash, err := resolveClaimKey(key)
	if err != nil {
		s.metrics.incLookup("rejected")
		writeError(w, http.StatusBadRequest, err, "INVALID_FORMAT")
		return
	}

	rec, err := s.escrow.GetClaimInfo(ctx, hash)
	if err != nil {
		s.metrics.incLookup("failed")
		writeEscrowError(w, err)
		return
	}
	if !rec.Exists() {
		s.metrics.incLookup("not_found")
		writeError(w, http.StatusNotFound, escrow.ErrClaimNotFound, escrow.ReasonCode(escrow.ErrClaimNotFound))
		return
	}

	resp := claimInfoResponse{
		ClaimCodeHash: hash.Hex(),
		Amount:        rec.Amount.String(),
		DisplayAmount: units.Format(rec.Amount, s.cfg.TokenDecimals),
		Recipient:     rec.Recipient.Hex(),
		Claimed:       rec.Claimed,
		Message:       rec.Message,
		Sender:        rec.Sender.Hex(),
	}

	// Metadata is best-effort; the claim is fully usable without it.
	if meta, metaErr := s.meta.Get(ctx, hash); metaErr == nil {
		resp.Meta = meta
	} else {
		s.log.Warn().Err(metaErr).Str("claimCodeHash", hash.Hex()).Msg("claim metadata lookup failed")
	}

	s.metrics.incLookup("ok")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var payload redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json payload"), "BAD_REQUEST")
		return
	}
	if !common.IsHexAddress(payload.Claimant) {
		s.metrics.incRedeemed("rejected")
		writeError(w, http.StatusBadRequest, errors.New("invalid claimant address"), "BAD_REQUEST")
		return
	}

	var hash common.Hash
	var err error
	switch {
	case payload.ClaimCode != "":
		hash, err = claimcode.Hash(payload.ClaimCode)
	case payload.ClaimCodeHash != "":
		hash, err = parseClaimHash(payload.ClaimCodeHash)
	default:
		err = errors.New("claimCode or claimCodeHash is required")
	}
	if err != nil {
		s.metrics.incRedeemed("rejected")
		writeError(w, http.StatusBadRequest, err, "INVALID_FORMAT")
		return
	}

	result, err := s.escrow.ClaimTokens(ctx, escrow.ClaimTokensRequest{
		Claimant:      common.HexToAddress(payload.Claimant),
		ClaimCodeHash: hash,
	})
	if err != nil {
		s.metrics.incRedeemed("failed")
		writeEscrowError(w, err)
		return
	}

	s.metrics.incRedeemed("claimed")
	writeJSON(w, http.StatusOK, redeemResponse{
		ClaimCodeHash: hash.Hex(),
		Amount:        result.Amount.String(),
		DisplayAmount: units.Format(result.Amount, s.cfg.TokenDecimals),
		Status:        "claimed",
		TxHash:        result.TxHash,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json payload"), "BAD_REQUEST")
		return
	}
	if !common.IsHexAddress(payload.Token) {
		s.metrics.incSweep("rejected")
		writeError(w, http.StatusBadRequest, errors.New("invalid token address"), "BAD_REQUEST")
		return
	}

	result, err := s.escrow.WithdrawStuckTokens(r.Context(), escrow.SweepRequest{
		Caller: s.owner,
		Token:  common.HexToAddress(payload.Token),
	})
	if err != nil {
		s.metrics.incSweep("failed")
		writeEscrowError(w, err)
		return
	}

	resp := sweepResponse{
		Token:  payload.Token,
		Status: "swept",
		TxHash: result.TxHash,
	}
	if result.Amount != nil {
		resp.Amount = result.Amount.String()
	}
	s.metrics.incSweep("swept")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status   string      `json:"status"`
		Mode     string      `json:"mode"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
	}{
		Status:   status,
		Mode:     s.cfg.Mode,
		RPC:      rpcInfo,
		Database: dbInfo,
	}

	w.Header().Set("Content-Type", "application/json")
	if !overallHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// saveMeta stores the sender's display metadata. Failures are logged and
// swallowed: metadata must never block a claim.
func (s *Server) saveMeta(ctx context.Context, hash common.Hash, payload createClaimRequest) {
	if payload.Meta == nil {
		return
	}
	rec := claimmeta.Record{
		SenderAddress:     payload.Sender,
		SenderUsername:    payload.Meta.SenderUsername,
		RecipientUsername: payload.Meta.RecipientUsername,
		DisplayAmount:     payload.Amount,
		MatchData:         payload.Meta.MatchData,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.meta.Save(ctx, hash, rec); err != nil {
		s.log.Warn().Err(err).Str("claimCodeHash", hash.Hex()).Msg("claim metadata save failed")
	}
}

// parseClaimHash accepts a 0x-prefixed 32-byte hex string.
func parseClaimHash(raw string) (common.Hash, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		return common.Hash{}, errors.New("claimCodeHash must be a 0x-prefixed 32-byte hex string")
	}
	for _, c := range raw[2:] {
		if !isHexDigit(c) {
			return common.Hash{}, errors.New("claimCodeHash must be a 0x-prefixed 32-byte hex string")
		}
	}
	return common.HexToHash(raw), nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// resolveClaimKey accepts either a plaintext claim code (recipient UX) or
// the hash itself (indexer UX).
func resolveClaimKey(key string) (common.Hash, error) {
	if strings.HasPrefix(key, "0x") {
		return parseClaimHash(key)
	}
	return claimcode.Hash(key)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error, reason string) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason})
}

// writeEscrowError maps the taxonomy onto HTTP statuses so the client can
// present an actionable message.
func writeEscrowError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, escrow.ErrInvalidAmount), errors.Is(err, units.ErrInvalidAmount), errors.Is(err, claimcode.ErrInvalidFormat):
		status = http.StatusBadRequest
	case errors.Is(err, escrow.ErrDuplicateClaim), errors.Is(err, escrow.ErrAlreadyClaimed):
		status = http.StatusConflict
	case errors.Is(err, escrow.ErrClaimNotFound):
		status = http.StatusNotFound
	case errors.Is(err, escrow.ErrNotRecipient), errors.Is(err, escrow.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrTokenTransferFailed):
		status = http.StatusBadGateway
	}
	writeError(w, status, err, escrow.ReasonCode(err))
}

// requestLogMiddleware tags each request with an ID and logs its outcome.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set("X-Request-Id", reqID)
		}
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.log.Info().
			Str("requestId", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
