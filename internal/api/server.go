// Package api exposes the HTTP surface: registration and session security
// endpoints, summarization job submission, and job status polling.
package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pa-tiq/synthia-api/internal/config"
	"github.com/pa-tiq/synthia-api/internal/crypto"
	"github.com/pa-tiq/synthia-api/internal/errs"
	"github.com/pa-tiq/synthia-api/internal/model"
	"github.com/pa-tiq/synthia-api/internal/queue"
	"github.com/pa-tiq/synthia-api/internal/session"
)

// UploadStore is the slice of s3storage the API needs: persisting pending
// uploads for the worker and presigning finished summaries.
type UploadStore interface {
	UploadPending(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignSummaryURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// Server wires config and collaborators into HTTP handlers. All dependencies
// arrive through New so tests can substitute fakes.
type Server struct {
	cfg      *config.Config
	sessions session.Store
	enqueuer queue.Enqueuer
	resolver queue.StatusResolver
	store    UploadStore
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, sessions session.Store, enqueuer queue.Enqueuer, resolver queue.StatusResolver, store UploadStore) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		enqueuer: enqueuer,
		resolver: resolver,
		store:    store,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(s.Routes())),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the route table. Exported so handler tests can mount it on a
// httptest server without opening a real listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/security/register", s.handleRegister)
	mux.HandleFunc("/security/rotate-key", s.handleRotateKey)
	mux.HandleFunc("/security/validate", s.handleValidate)
	mux.HandleFunc("/security/deactivate", s.handleDeactivate)
	mux.HandleFunc("/summarize", s.handleSummarize)
	mux.HandleFunc("/summarize/text", s.handleSummarizeText)
	mux.HandleFunc("/result/", s.handleResultRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRegister creates an anonymous session: a fresh user id, a high
// entropy registration token, and a per-registration RSA keypair whose
// private half is dropped on return.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := uuid.NewString()
	token, err := newToken()
	if err != nil {
		s.writeError(w, err)
		return
	}
	_, publicKeyPEM, err := crypto.GenerateKeyPair()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.sessions.Create(r.Context(), userID, token, publicKeyPEM); err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":            userID,
		"registration_token": token,
		"server_public_key":  publicKeyPEM,
	})
}

// handleRotateKey returns the current symmetric key (rotating it first if the
// rotation window elapsed) wrapped under the client's public key.
func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	clientKey := r.PostFormValue("client_public_key")
	if clientKey == "" {
		http.Error(w, "client_public_key required", http.StatusBadRequest)
		return
	}
	symKey, err := s.sessionKey(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	raw, err := crypto.KeyBytes(symKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	wrapped, err := crypto.WrapSymmetricKey(clientKey, raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"encrypted_symmetric_key": wrapped})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	expiresIn := s.sessions.RemainingTTL(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      true,
		"user_id":    userID,
		"expires_in": int64(expiresIn.Seconds()),
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Deactivate(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSummarize accepts a multipart upload, persists it where the worker
// can reach it, and enqueues a summarization job. Authentication and file
// type validation happen before a single upload byte is stored.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	fileType := model.FileType(r.FormValue("file_type"))
	if !fileType.Valid() {
		http.Error(w, "unsupported file type", http.StatusBadRequest)
		return
	}
	fileName := r.FormValue("file_name")
	targetLanguage := normalizeLanguage(r.FormValue("target_language"))

	// The encrypted envelope is optional; when present it must open under the
	// current session key and may override the request metadata.
	var symKey string
	if token := r.FormValue("encrypted_payload"); token != "" {
		var err error
		symKey, err = s.sessionKey(ctx, userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		plaintext, err := crypto.Decrypt(symKey, token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		var overrides struct {
			FileName       string `json:"file_name"`
			TargetLanguage string `json:"target_language"`
		}
		if err := json.Unmarshal(plaintext, &overrides); err != nil {
			s.writeError(w, crypto.ErrTokenMalformed)
			return
		}
		if overrides.FileName != "" {
			fileName = overrides.FileName
		}
		if overrides.TargetLanguage != "" {
			targetLanguage = normalizeLanguage(overrides.TargetLanguage)
		}
	}

	// Wrap the session key before persisting anything: a malformed client key
	// must fail the request without leaving an orphaned upload or job behind.
	clientKey := r.FormValue("client_public_key")
	var wrappedKey string
	if clientKey != "" {
		if symKey == "" {
			var err error
			symKey, err = s.sessionKey(ctx, userID)
			if err != nil {
				s.writeError(w, err)
				return
			}
		}
		raw, err := crypto.KeyBytes(symKey)
		if err != nil {
			s.writeError(w, err)
			return
		}
		wrappedKey, err = crypto.WrapSymmetricKey(clientKey, raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if fileName == "" {
		fileName = header.Filename
	}
	if fileName == "" {
		fileName = "upload"
	}

	jobID := uuid.NewString()
	objectKey := "uploads/" + jobID + "/" + filepath.Base(fileName)
	contentType := header.Header.Get("Content-Type")
	if err := s.store.UploadPending(ctx, objectKey, file, header.Size, contentType); err != nil {
		log.Printf("persist upload: %v", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	err = s.enqueuer.EnqueueFile(ctx, jobID, queue.FilePayload{
		ObjectKey:      objectKey,
		FileName:       fileName,
		FileType:       fileType,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		log.Printf("enqueue job: %v", err)
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}

	if wrappedKey != "" {
		s.respondSealed(w, symKey, wrappedKey, jobID)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// respondSealed returns the job handle sealed under the session key, with the
// session key itself wrapped under the client's public key.
func (s *Server) respondSealed(w http.ResponseWriter, symKey, wrappedKey, jobID string) {
	plain, err := json.Marshal(map[string]string{"job_id": jobID})
	if err != nil {
		s.writeError(w, err)
		return
	}
	sealed, err := crypto.Encrypt(symKey, plain)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"encrypted_data":          sealed,
		"encrypted_symmetric_key": wrappedKey,
	})
}

func (s *Server) handleSummarizeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, ok := s.authorize(w, r)
	if !ok {
		return
	}
	text := r.PostFormValue("text")
	if strings.TrimSpace(text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	targetLanguage := normalizeLanguage(r.PostFormValue("target_language"))
	jobID := uuid.NewString()
	err := s.enqueuer.EnqueueText(r.Context(), jobID, queue.TextPayload{
		Text:           text,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		log.Printf("enqueue job: %v", err)
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleResultRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/result/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	jobID := parts[0]
	switch {
	case len(parts) == 1:
		s.handleResult(w, r, jobID)
	case len(parts) == 2 && parts[1] == "download":
		s.handleResultDownload(w, r, jobID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, jobID string) {
	view, err := s.resolver.Resolve(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleResultDownload(w http.ResponseWriter, r *http.Request, jobID string) {
	view, err := s.resolver.Resolve(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if view.Status != model.StatusCompleted {
		http.Error(w, "summary not available", http.StatusNotFound)
		return
	}
	url, err := s.store.PresignSummaryURL(r.Context(), jobID+".txt", s.cfg.SignedURLTTL)
	if err != nil {
		log.Printf("presign summary: %v", err)
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// sessionKey fetches (rotating if stale) the caller's symmetric key. A record
// that expired between the auth gate and this read reads as a bad session,
// not a missing resource.
func (s *Server) sessionKey(ctx context.Context, userID string) (string, error) {
	key, err := s.sessions.GetOrRotateKey(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return "", fmt.Errorf("session %s: %w", userID, errs.ErrUnauthorized)
	}
	return key, err
}

// authorize enforces the session gate shared by every authenticated endpoint.
// It writes the 403 itself and reports whether the caller may proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.FormValue("user_id")
	token := r.FormValue("registration_token")
	if userID == "" || token == "" {
		http.Error(w, "invalid registration", http.StatusForbidden)
		return "", false
	}
	valid, err := s.sessions.Validate(r.Context(), userID, token)
	if err != nil {
		s.writeError(w, err)
		return "", false
	}
	if !valid {
		http.Error(w, "invalid registration", http.StatusForbidden)
		return "", false
	}
	return userID, true
}

// writeError maps sentinel errors to status codes; anything unexpected is a
// 500 with a generic body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errs.ErrUnauthorized):
		http.Error(w, "invalid registration", http.StatusForbidden)
	case errors.Is(err, errs.ErrDecryption):
		http.Error(w, "decryption failed", http.StatusBadRequest)
	case errors.Is(err, errs.ErrBadRequest):
		http.Error(w, "bad request", http.StatusBadRequest)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// newToken returns a high-entropy url-safe registration token.
func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// normalizeLanguage rewrites the bare Portuguese code to the Brazilian
// variant the downstream models expect, and defaults to English.
func normalizeLanguage(lang string) string {
	switch lang {
	case "":
		return "en"
	case "pt":
		return "pt-br"
	}
	return lang
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
