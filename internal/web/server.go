package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ServerConfig struct {
	Addr string

	// BulkReplace enables PUT /booklets/{id}/items. When false the route answers 501 so
	// clients exercise their incremental fallback.
	BulkReplace bool

	// PageSize is the default /candidates page size.
	PageSize int
}

type Server struct {
	mu    sync.RWMutex
	cfg   ServerConfig
	store *store.Store
	log   *zap.Logger
}

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

func (s *Server) bulkReplace() bool {
	s.mu.RLock()
	b := s.cfg.BulkReplace
	s.mu.RUnlock()
	return b
}

// SetBulkReplace toggles the atomic replace route at runtime.
func (s *Server) SetBulkReplace(enabled bool) {
	s.mu.Lock()
	s.cfg.BulkReplace = enabled
	s.mu.Unlock()
}

func NewServer(cfg ServerConfig, st *store.Store, log *zap.Logger) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if st == nil {
		return nil, errors.New("web: store is nil")
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, store: st, log: log}, nil
}

func (s *Server) Addr() string { return s.cfgSnapshot().Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /booklets", s.handleBookletList)
	mux.HandleFunc("POST /booklets", s.handleBookletCreate)
	mux.HandleFunc("GET /booklets/{id}", s.handleBooklet)
	mux.HandleFunc("GET /booklets/{id}/items", s.handleItemList)
	mux.HandleFunc("POST /booklets/{id}/items", s.handleItemCreate)
	mux.HandleFunc("PUT /booklets/{id}/items", s.handleItemReplace)
	mux.HandleFunc("PATCH /booklets/{id}/items/{itemId}", s.handleItemUpdate)
	mux.HandleFunc("DELETE /booklets/{id}/items/{itemId}", s.handleItemDelete)
	mux.HandleFunc("GET /candidates", s.handleCandidates)
	mux.HandleFunc("GET /versions", s.handleVersions)
	mux.HandleFunc("POST /questions", s.handleQuestionAdd)
	return s.logRequests(mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreErr maps store and reconcile errors onto status codes.
func (s *Server) writeStoreErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrInvalidReference):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case reconcile.IsUnsupported(err):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		s.log.Error("store failure", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", store.ErrInvalid, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: bad %s %q", store.ErrInvalid, name, raw)
	}
	return id, nil
}

func (s *Server) handleBookletList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListBooklets(r.Context())
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	if list == nil {
		list = []model.Booklet{}
	}
	writeJSON(w, http.StatusOK, list)
}

type bookletCreateBody struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

func (s *Server) handleBookletCreate(w http.ResponseWriter, r *http.Request) {
	var body bookletCreateBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	b, err := s.store.CreateBooklet(r.Context(), body.Title, body.Subject)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBooklet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	b, err := s.store.GetBooklet(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleItemList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	items, err := s.store.ListItems(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleItemCreate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	var spec model.ItemSpec
	if err := decodeJSON(r, &spec); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	it, err := s.store.CreateItem(r.Context(), id, spec)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleItemReplace(w http.ResponseWriter, r *http.Request) {
	if !s.bulkReplace() {
		writeError(w, http.StatusNotImplemented, "bulk replace is disabled")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	var specs []model.ItemSpec
	if err := decodeJSON(r, &specs); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	items, err := s.store.ReplaceItems(r.Context(), id, specs)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleItemUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	it, err := s.store.UpdateItem(r.Context(), id, itemID, patch)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleItemDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	if err := s.store.DeleteItem(r.Context(), id, itemID); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad %s %q", store.ErrInvalid, key, raw)
	}
	return n, nil
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SearchFilter{
		Query:      q.Get("q"),
		Subject:    q.Get("subject"),
		Difficulty: model.Difficulty(strings.ToLower(strings.TrimSpace(q.Get("difficulty")))),
	}
	number, err := queryInt(r, "page", 1)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	size, err := queryInt(r, "size", s.cfgSnapshot().PageSize)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	res, err := s.store.SearchCandidates(r.Context(), filter, model.Page{Number: number, Size: size})
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleVersions resolves ?ids=1,2,3 to candidates in request order. Unknown ids are skipped.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("bad version id %q", part))
			return
		}
		ids = append(ids, id)
	}
	byID, err := s.store.CandidatesByVersion(r.Context(), ids)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	out := make([]model.Candidate, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type questionBody struct {
	Code       string           `json:"code"`
	Title      string           `json:"title"`
	Subject    string           `json:"subject"`
	Difficulty model.Difficulty `json:"difficulty"`
	Stem       string           `json:"stem"`
}

func (s *Server) handleQuestionAdd(w http.ResponseWriter, r *http.Request) {
	var body questionBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	c, err := s.store.AddQuestionVersion(r.Context(), store.QuestionInput(body))
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
