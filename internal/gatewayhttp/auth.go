package gatewayhttp

import (
	"container/list"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Request auth headers: the policy daemon authenticates mint/verify calls
// with an HMAC-signed API key rather than a bearer token, the same scheme
// the teacher's gateway uses for its own service-to-service calls
// (gateway/auth/auth.go).
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"

	maxBodyForSignature = 1 << 20 // 1 MiB

	maxAllowedTimestampSkew = 2 * time.Minute
	maxNonceWindow          = 10 * time.Minute
	defaultNonceCapacity    = 4096
	maxNonceCapacity        = 65536
	noncePruneInterval      = time.Minute
)

// Principal is the authenticated caller of a mint or verify request.
type Principal struct {
	APIKey string
}

// NonceRecord is one persisted nonce usage, for durable replay protection
// across daemon restarts.
type NonceRecord struct {
	APIKey     string
	Timestamp  string
	Nonce      string
	ObservedAt time.Time
}

// NoncePersistence is durable storage for nonce usage; LevelDBNoncePersistence
// is the daemon's implementation, grounded on the teacher's equivalent
// (gateway/auth/nonce_leveldb.go).
type NoncePersistence interface {
	EnsureNonce(ctx context.Context, record NonceRecord) (bool, error)
	RecentNonces(ctx context.Context, cutoff time.Time) ([]NonceRecord, error)
	PruneNonces(ctx context.Context, cutoff time.Time) error
}

// Authenticator checks the API-key + HMAC-SHA256 request signature scheme
// (spec §6's external HTTP interface): caller signs timestamp, nonce,
// method, canonical path, and body under a shared secret.
type Authenticator struct {
	secrets       map[string]string
	clockSkew     time.Duration
	nonceTTL      time.Duration
	nonceCapacity int
	now           func() time.Time

	nonceMu sync.Mutex
	nonces  map[string]*nonceWindow

	replayMu sync.Mutex
	lastSeen map[string]int64

	persistence NoncePersistence
	lastPruned  time.Time
}

// NewAuthenticator builds an Authenticator over the given API-key → secret
// map.
func NewAuthenticator(secrets map[string]string, clockSkew, nonceTTL time.Duration, nonceCapacity int, persistence NoncePersistence) *Authenticator {
	cloned := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cloned[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if clockSkew <= 0 || clockSkew > maxAllowedTimestampSkew {
		clockSkew = maxAllowedTimestampSkew
	}
	if nonceTTL <= 0 || nonceTTL > maxNonceWindow {
		nonceTTL = maxNonceWindow
	}
	if nonceCapacity <= 0 {
		nonceCapacity = defaultNonceCapacity
	}
	if nonceCapacity > maxNonceCapacity {
		nonceCapacity = maxNonceCapacity
	}
	return &Authenticator{
		secrets:       cloned,
		clockSkew:     clockSkew,
		nonceTTL:      nonceTTL,
		nonceCapacity: nonceCapacity,
		now:           time.Now,
		nonces:        make(map[string]*nonceWindow),
		lastSeen:      make(map[string]int64),
		persistence:   persistence,
	}
}

// Authenticate validates the API-key/signature/nonce headers on r against
// body, returning the caller's Principal once all checks pass.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (*Principal, error) {
	if len(body) > maxBodyForSignature {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyForSignature)
	}
	apiKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if apiKey == "" {
		return nil, errors.New("missing " + HeaderAPIKey + " header")
	}
	secret, ok := a.secrets[apiKey]
	if !ok || secret == "" {
		return nil, errors.New("unknown API key")
	}
	timestampHeader := strings.TrimSpace(r.Header.Get(HeaderTimestamp))
	if timestampHeader == "" {
		return nil, errors.New("missing " + HeaderTimestamp + " header")
	}
	ts, err := parseUnixTimestamp(timestampHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	now := a.now().UTC()
	if skew := now.Sub(ts); abs(skew) > a.clockSkew {
		return nil, fmt.Errorf("timestamp outside allowed skew of %s", a.clockSkew)
	}
	nonce := strings.TrimSpace(r.Header.Get(HeaderNonce))
	if nonce == "" {
		return nil, errors.New("missing " + HeaderNonce + " header")
	}
	providedSig := strings.TrimSpace(r.Header.Get(HeaderSignature))
	if providedSig == "" {
		return nil, errors.New("missing " + HeaderSignature + " header")
	}
	expected := ComputeSignature(secret, timestampHeader, nonce, r.Method, CanonicalRequestPath(r), body)
	providedBytes, err := hex.DecodeString(providedSig)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(providedBytes, expected) {
		return nil, errors.New("invalid signature")
	}
	duplicate, err := a.registerNonce(r.Context(), apiKey, timestampHeader, nonce, now)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, errors.New("nonce already used")
	}
	if a.isTimestampReplay(apiKey, ts, now) {
		return nil, errors.New("timestamp not increasing")
	}
	return &Principal{APIKey: apiKey}, nil
}

// HydrateNonces warms the in-memory dedup cache from persisted nonce usage,
// called once at daemon startup before the HTTP listener opens.
func (a *Authenticator) HydrateNonces(ctx context.Context, cutoff time.Time) error {
	if a == nil || a.persistence == nil {
		return nil
	}
	records, err := a.persistence.RecentNonces(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("load persistent nonces: %w", err)
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.APIKey) == "" || strings.TrimSpace(rec.Timestamp) == "" || strings.TrimSpace(rec.Nonce) == "" {
			continue
		}
		observed := rec.ObservedAt
		if observed.IsZero() {
			observed = cutoff
		}
		a.window(rec.APIKey).add(rec.Timestamp+"|"+rec.Nonce, observed)
	}
	return nil
}

func (a *Authenticator) registerNonce(ctx context.Context, apiKey, timestamp, nonce string, now time.Time) (bool, error) {
	window := a.window(apiKey)
	composite := timestamp + "|" + nonce
	if window.contains(composite, now) {
		return true, nil
	}
	if a.persistence != nil {
		if err := a.prunePersistent(ctx, now); err != nil {
			return false, err
		}
		existed, err := a.persistence.EnsureNonce(ctx, NonceRecord{APIKey: apiKey, Timestamp: timestamp, Nonce: nonce, ObservedAt: now})
		if err != nil {
			return false, fmt.Errorf("persist nonce: %w", err)
		}
		if existed {
			window.add(composite, now)
			return true, nil
		}
	}
	window.add(composite, now)
	return false, nil
}

func (a *Authenticator) prunePersistent(ctx context.Context, now time.Time) error {
	if a.persistence == nil || a.nonceTTL <= 0 {
		return nil
	}
	if !a.lastPruned.IsZero() && now.Sub(a.lastPruned) < noncePruneInterval {
		return nil
	}
	if err := a.persistence.PruneNonces(ctx, now.Add(-a.nonceTTL)); err != nil {
		return fmt.Errorf("prune persistent nonces: %w", err)
	}
	a.lastPruned = now
	return nil
}

// isTimestampReplay rejects a non-increasing timestamp from the same API
// key within the skew window, closing the gap a bare nonce-dedup check
// leaves open (a captured request replayed with a stale-but-unused nonce).
func (a *Authenticator) isTimestampReplay(apiKey string, ts, now time.Time) bool {
	if a.clockSkew <= 0 {
		return false
	}
	cutoff := now.Add(-a.clockSkew)
	current := ts.Unix()

	a.replayMu.Lock()
	defer a.replayMu.Unlock()

	last, ok := a.lastSeen[apiKey]
	if ok {
		if time.Unix(last, 0).UTC().After(cutoff) {
			if current <= last {
				return true
			}
		} else {
			delete(a.lastSeen, apiKey)
			ok = false
		}
	}
	if !ok || current > last {
		a.lastSeen[apiKey] = current
	}
	return false
}

func (a *Authenticator) window(apiKey string) *nonceWindow {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	w, ok := a.nonces[apiKey]
	if !ok {
		w = newNonceWindow(a.nonceTTL, a.nonceCapacity)
		a.nonces[apiKey] = w
	}
	return w
}

// CanonicalRequestPath normalizes the path + sorted query for stable
// signing.
func CanonicalRequestPath(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + CanonicalQuery(r.URL.RawQuery)
	}
	return path
}

// CanonicalQuery sorts raw query parameters so signers and verifiers agree
// regardless of client-side ordering.
func CanonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// ComputeSignature computes the HMAC-SHA256 request signature over
// timestamp, nonce, method, canonical path, and body, newline-joined.
func ComputeSignature(secret, timestamp, nonce, method, path string, body []byte) []byte {
	payload := strings.Join([]string{timestamp, nonce, strings.ToUpper(method), path, string(body)}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func parseUnixTimestamp(v string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// nonceWindow is a capacity-bounded, TTL-evicting set of recently seen
// nonces for one API key.
type nonceWindow struct {
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type nonceEntry struct {
	key string
	at  time.Time
}

func newNonceWindow(ttl time.Duration, capacity int) *nonceWindow {
	return &nonceWindow{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (w *nonceWindow) contains(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictExpired(now.Add(-w.ttl))
	_, exists := w.entries[key]
	return exists
}

func (w *nonceWindow) add(key string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictExpired(now.Add(-w.ttl))
	if elem, exists := w.entries[key]; exists {
		elem.Value = nonceEntry{key: key, at: now}
		w.order.MoveToBack(elem)
		return
	}
	for w.capacity > 0 && w.order.Len() >= w.capacity {
		w.evictFront()
	}
	w.entries[key] = w.order.PushBack(nonceEntry{key: key, at: now})
}

func (w *nonceWindow) evictExpired(cutoff time.Time) {
	for {
		front := w.order.Front()
		if front == nil {
			return
		}
		if !front.Value.(nonceEntry).at.Before(cutoff) {
			return
		}
		w.evictFront()
	}
}

func (w *nonceWindow) evictFront() {
	front := w.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(nonceEntry)
	w.order.Remove(front)
	delete(w.entries, entry.key)
}
