// Package firebasetest runs a stand-in for the Firebase Auth emulator and
// mints the unsigned ID tokens the emulator accepts.
package firebasetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// emulatorHostEnv is the variable the Admin SDK checks for emulator mode
const emulatorHostEnv = "FIREBASE_AUTH_EMULATOR_HOST"

// User is an account known to the emulator
type User struct {
	UID        string
	Disabled   bool
	ValidSince time.Time // tokens issued before this are revoked
}

// Emulator answers the accounts:lookup call the SDK makes when checking
// revocation, which it always does in emulator mode. Unknown uids get an
// empty result, so every subject that should verify must be added.
type Emulator struct {
	ProjectID string

	server  *httptest.Server
	lookups atomic.Int32
	status  atomic.Int32
	delay   atomic.Int64

	mu    sync.Mutex
	users map[string]User
}

// NewEmulator starts the server and points FIREBASE_AUTH_EMULATOR_HOST at
// it for the rest of the test.
func NewEmulator(t testing.TB, projectID string) *Emulator {
	t.Helper()

	e := &Emulator{
		ProjectID: projectID,
		users:     make(map[string]User),
	}
	e.status.Store(http.StatusOK)
	e.server = httptest.NewServer(http.HandlerFunc(e.handleLookup))
	t.Cleanup(e.server.Close)
	t.Setenv(emulatorHostEnv, e.Host())
	return e
}

// Host returns host:port of the emulator
func (e *Emulator) Host() string {
	return strings.TrimPrefix(e.server.URL, "http://")
}

// AddUser registers or replaces an account
func (e *Emulator) AddUser(u User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users[u.UID] = u
}

// Lookups returns how many account lookups were served
func (e *Emulator) Lookups() int {
	return int(e.lookups.Load())
}

// FailLookups makes every lookup answer with status code
func (e *Emulator) FailLookups(code int) {
	e.status.Store(int32(code))
}

// SetLookupDelay holds each lookup for d or until the caller gives up
func (e *Emulator) SetLookupDelay(d time.Duration) {
	e.delay.Store(int64(d))
}

// Token mints an unsigned ID token for uid that passes emulator-mode checks.
// mutate may adjust the claims before encoding.
func (e *Emulator) Token(t testing.TB, uid string, mutate ...func(jwt.MapClaims)) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            "https://securetoken.google.com/" + e.ProjectID,
		"aud":            e.ProjectID,
		"sub":            uid,
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"auth_time":      now.Add(-2 * time.Minute).Unix(),
		"email":          uid + "@fleetops.io",
		"email_verified": true,
		"firebase":       map[string]interface{}{"sign_in_provider": "password"},
	}
	for _, m := range mutate {
		m(claims)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("mint emulator token: %v", err)
	}
	return token
}

type lookupRequest struct {
	LocalID []string `json:"localId"`
}

type lookupUser struct {
	LocalID    string `json:"localId"`
	Disabled   bool   `json:"disabled,omitempty"`
	ValidSince string `json:"validSince,omitempty"`
}

func (e *Emulator) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/accounts:lookup") {
		http.NotFound(w, r)
		return
	}
	e.lookups.Add(1)

	if d := time.Duration(e.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if code := int(e.status.Load()); code != http.StatusOK {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(code) + `,"message":"PERMISSION_DENIED"}}`))
		return
	}

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_JSON"}}`))
		return
	}

	e.mu.Lock()
	var found []lookupUser
	for _, uid := range req.LocalID {
		u, ok := e.users[uid]
		if !ok {
			continue
		}
		lu := lookupUser{LocalID: u.UID, Disabled: u.Disabled}
		if !u.ValidSince.IsZero() {
			lu.ValidSince = strconv.FormatInt(u.ValidSince.Unix(), 10)
		}
		found = append(found, lu)
	}
	e.mu.Unlock()

	resp := map[string]interface{}{"kind": "identitytoolkit#GetAccountInfoResponse"}
	if len(found) > 0 {
		resp["users"] = found
	}
	_ = json.NewEncoder(w).Encode(resp)
}
