package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agent-safe/splcap/internal/hostadapter"
	"github.com/agent-safe/splcap/internal/logging"
	"github.com/agent-safe/splcap/internal/policy"
	"github.com/agent-safe/splcap/internal/telemetry"
	"github.com/agent-safe/splcap/internal/token"
)

// Server is the policy daemon's HTTP API (spec §6): mint, verify, and a
// Prometheus metrics endpoint, wired the way the teacher's cmd/gateway/main.go
// assembles its own chi router, but fronting token operations instead of
// proxied RPC services.
type Server struct {
	Logger        *log.Logger
	Authenticator *Authenticator
	RateLimiter   *RateLimiter
	Observability *Observability
	CORSConfig    CORSConfig

	SigningSeedHex string
	PerDayCount    policy.PerDayCounter
	Threshold      *hostadapter.ThresholdRegistry
	Vrf            *hostadapter.HMACVrfStub
	DefaultGas     int64
}

// Router assembles the chi mux serving mint/verify/metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(s.CORSConfig))

	r.With(s.Observability.Middleware("mint"), s.RateLimiter.Middleware("mint"), s.authMiddleware).
		Post("/v1/mint", s.handleMint)
	r.With(s.Observability.Middleware("verify"), s.RateLimiter.Middleware("verify"), s.authMiddleware).
		Post("/v1/verify", s.handleVerify)
	r.Get("/metrics", s.Observability.MetricsHandler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

type principalContextKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyForSignature+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		principal, err := s.Authenticator.Authenticate(r, body)
		if err != nil {
			s.Logger.Printf("auth failed: %v", err)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principalFromContext recovers the authenticated caller a handler may want
// for logging or audit purposes.
func principalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

type mintRequest struct {
	Policy         string `json:"policy"`
	PrivateSeedHex string `json:"private_seed_hex"`
	MerkleRoot     string `json:"merkle_root"`
	HashChainRoot  string `json:"hash_chain_commitment"`
	Sealed         bool   `json:"sealed"`
	Expires        string `json:"expires"`
	PopKey         string `json:"pop_key"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seedHex := req.PrivateSeedHex
	if seedHex == "" {
		seedHex = s.SigningSeedHex
	}

	// Audit the mint request without ever writing the signing seed itself
	// into logs: logging.MaskField redacts it to a placeholder unless the
	// key is allowlisted (it isn't).
	slog.Default().Info("mint_request",
		logging.MaskField("private_seed_hex", seedHex),
		slog.Int("policy_bytes", len(req.Policy)),
		slog.Bool("sealed", req.Sealed),
	)

	t, err := token.Mint(req.Policy, seedHex, token.MintOptions{
		MerkleRoot:          req.MerkleRoot,
		HashChainCommitment: req.HashChainRoot,
		Sealed:              req.Sealed,
		Expires:             req.Expires,
		PopKey:              req.PopKey,
	})
	s.Observability.ObserveMint(err)
	telemetry.RecordOperation(r.Context(), "mint", len(req.Policy), 0, err == nil, req.Sealed, errStringOrEmpty(err))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if principal, ok := principalFromContext(r.Context()); ok {
		s.Logger.Printf("minted token for api key %s", principal.APIKey)
	}
	writeJSON(w, http.StatusOK, t)
}

func errStringOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type thresholdSignature struct {
	PublicKeyHex string `json:"public_key_hex"`
	SignatureHex string `json:"signature_hex"`
}

type verifyRequest struct {
	Token                    *token.Token               `json:"token"`
	Req                      map[string]json.RawMessage `json:"req"`
	Vars                     map[string]json.RawMessage `json:"vars"`
	PresentationSignatureHex string                     `json:"presentation_signature_hex"`
	DpopProofJWT             string                     `json:"dpop_proof_jwt"`
	DpopHolderPublicKeyHex   string                     `json:"dpop_holder_public_key_hex"`
	DpopHTTPMethod           string                     `json:"dpop_http_method"`
	DpopHTTPURI              string                     `json:"dpop_http_uri"`
	VrfActor                 string                     `json:"vrf_actor"`
	VrfModulus               uint64                     `json:"vrf_modulus"`
	ThresholdMessageHex      string                     `json:"threshold_message_hex"`
	ThresholdSignatures      []thresholdSignature       `json:"threshold_signatures"`
}

type verifyResponse struct {
	Allow  bool   `json:"allow"`
	Sealed bool   `json:"sealed"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == nil {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	reqVals, err := policy.MapFromJSON(req.Req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid req map: "+err.Error())
		return
	}
	varVals, err := policy.MapFromJSON(req.Vars)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vars map: "+err.Error())
		return
	}

	slog.Default().Info("verify_request",
		logging.MaskField("presentation_signature_hex", req.PresentationSignatureHex),
		slog.Bool("sealed", req.Token.Sealed),
	)

	dpop := hostadapter.NewJWTDPoPVerifier(0)
	crypto := policy.CryptoCallbacks{
		DpopOk: dpop.Callback(req.DpopProofJWT, req.DpopHolderPublicKeyHex, req.DpopHTTPMethod, req.DpopHTTPURI),
		MerkleOk: func(args []policy.Value) bool {
			if req.Token.MerkleRoot == nil {
				return false
			}
			return hostadapter.DefaultMerkleCallback(*req.Token.MerkleRoot)(args)
		},
		ThreshOk: func() bool { return false },
	}
	if s.Threshold != nil && req.ThresholdMessageHex != "" {
		message, err := hex.DecodeString(req.ThresholdMessageHex)
		if err == nil {
			sigs := make([]hostadapter.CoSignature, 0, len(req.ThresholdSignatures))
			for _, sig := range req.ThresholdSignatures {
				sigs = append(sigs, hostadapter.CoSignature{PublicKeyHex: sig.PublicKeyHex, SignatureHex: sig.SignatureHex})
			}
			crypto.ThreshOk = s.Threshold.ThreshOkCallback(message, sigs)
		}
	}
	if s.Vrf != nil {
		crypto.VrfOk = s.Vrf.VrfOkCallback(req.VrfActor, req.VrfModulus)
	}

	result := token.Verify(req.Token, token.VerifyOptions{
		Req:                      reqVals,
		Vars:                     varVals,
		PresentationSignatureHex: req.PresentationSignatureHex,
		PerDayCount:              s.PerDayCount,
		Crypto:                   crypto,
		MaxGas:                   s.DefaultGas,
	})

	denyReason := ""
	if result.Error != nil {
		denyReason = result.Error.Error()
	}
	s.Observability.ObserveVerify(result.Allow, denyReason, result.GasConsumed)
	telemetry.RecordOperation(r.Context(), "verify", len(req.Token.Policy), result.GasConsumed, result.Allow, result.Sealed, denyReason)

	resp := verifyResponse{Allow: result.Allow, Sealed: result.Sealed, Error: denyReason}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
