package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Brownie44l1/colourise-api/internal/blobstore"
	"github.com/Brownie44l1/colourise-api/internal/cache"
	"github.com/Brownie44l1/colourise-api/internal/config"
	"github.com/Brownie44l1/colourise-api/internal/failure"
	"github.com/Brownie44l1/colourise-api/internal/notify"
	"github.com/Brownie44l1/colourise-api/internal/source"
)

// Colouriser is the pipeline as seen by the handlers.
type Colouriser interface {
	Render(ctx context.Context, data []byte) ([]byte, error)
	ColouriseFile(ctx context.Context, inPath, outPath string) error
}

// ModelInfo is reported by the health endpoint.
type ModelInfo struct {
	InputHeight  int     `json:"input_height"`
	InputWidth   int     `json:"input_width"`
	OutputHeight int     `json:"output_height"`
	OutputWidth  int     `json:"output_width"`
	Temperature  float64 `json:"temperature"`
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Fetcher  *source.Fetcher
	Notifier notify.Publisher
	Server   config.ServerConfig
	Model    ModelInfo
	Logger   *slog.Logger
}

type Handler struct {
	colouriser Colouriser
	results    *cache.Cache
	store      blobstore.Store
	fetcher    *source.Fetcher
	notifier   notify.Publisher
	server     config.ServerConfig
	model      ModelInfo
	logger     *slog.Logger
}

func NewHandler(colouriser Colouriser, results *cache.Cache, store blobstore.Store, o Options) *Handler {
	h := &Handler{
		colouriser: colouriser,
		results:    results,
		store:      store,
		fetcher:    o.Fetcher,
		notifier:   o.Notifier,
		server:     o.Server,
		model:      o.Model,
		logger:     o.Logger,
	}
	if h.fetcher == nil {
		h.fetcher = source.NewFetcher(nil, o.Server.MaxDownloadBytes)
	}
	if h.notifier == nil {
		h.notifier = notify.Nop{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.server.MaxUploadBytes <= 0 {
		h.server.MaxUploadBytes = config.DefaultUploadBytes
	}
	return h
}

// Routes registers every endpoint behind the request ID and CORS wrappers.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /colour", h.Colour)
	mux.HandleFunc("POST /colour/image", h.ColourFromImage)
	mux.HandleFunc("POST /colour/file", h.ColourFile)
	mux.HandleFunc("GET "+blobstore.ResultsPath+"{key}", h.Result)
	return withRequestID(enableCORS(mux))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status string    `json:"status"`
		Model  ModelInfo `json:"model"`
	}{Status: "healthy", Model: h.model})
}

// Colour colourises the image at ?url= and answers with its public location.
func (h *Handler) Colour(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if _, err := source.Validate(rawURL); err != nil {
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	identity := source.URLIdentity(rawURL)
	res, err := h.results.LookupOrCompute(r.Context(), identity, func(ctx context.Context) ([]byte, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, h.fetchTimeout())
		defer cancel()

		data, err := h.fetcher.Fetch(fetchCtx, rawURL)
		if err != nil {
			return nil, err
		}
		h.log(r).Info("downloaded source image", "bytes", len(data))
		return h.colouriser.Render(ctx, data)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeLocation(w, r, identity, res, start)
}

// ColourFromImage colourises a multipart upload in the "image" field.
func (h *Handler) ColourFromImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.server.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log(r).Warn("upload too large", "limit", tooLarge.Limit)
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, r, failure.InvalidInput("parse form", err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, r, failure.InvalidInput("no image file provided, use 'image' as the form field name", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, failure.InvalidInput("read upload", err))
		return
	}
	h.log(r).Info("received file", "name", header.Filename, "bytes", len(data))

	start := time.Now()
	identity := source.ContentIdentity(data)
	res, err := h.results.LookupOrCompute(r.Context(), identity, func(ctx context.Context) ([]byte, error) {
		return h.colouriser.Render(ctx, data)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeLocation(w, r, identity, res, start)
}

// FileRequest names an input image and the JPEG to write.
type FileRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ColourFile colourises between two paths under the configured files root.
// Results are not cached.
func (h *Handler) ColourFile(w http.ResponseWriter, r *http.Request) {
	if h.server.FilesRoot == "" {
		http.Error(w, "file colourisation is disabled", http.StatusForbidden)
		return
	}

	var req FileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, failure.InvalidInput("invalid JSON", err))
		return
	}
	in, err := confine(h.server.FilesRoot, req.Input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := confine(h.server.FilesRoot, req.Output)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.colouriser.ColouriseFile(r.Context(), in, out); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log(r).Info("colourised file", "input", in, "output", out)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"output": out})
}

// Result serves a stored object for stores without their own public endpoint.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !blobstore.ValidKey(key) {
		http.NotFound(w, r)
		return
	}

	obj, err := h.store.Get(r.Context(), key)
	if errors.Is(err, blobstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeError(w, r, &failure.StorageError{Op: "get", Key: key, Err: err})
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(obj.Data)
}

func (h *Handler) writeLocation(w http.ResponseWriter, r *http.Request, identity string, res cache.Result, start time.Time) {
	elapsed := time.Since(start)

	cacheState := "MISS"
	if res.Hit {
		cacheState = "HIT"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Location)

	h.log(r).Info("colourise request served",
		"key", res.Key,
		"cache", cacheState,
		"duration", elapsed)

	err := h.notifier.Publish(r.Context(), notify.Event{
		RequestID:  requestID(r.Context()),
		Key:        res.Key,
		Location:   res.Location,
		Identity:   identity,
		CacheHit:   res.Hit,
		DurationMS: elapsed.Milliseconds(),
		Time:       time.Now().UTC(),
	})
	if err != nil {
		h.log(r).Warn("failed to publish result event", "key", res.Key, "error", err)
	}
}

// statusFor maps failure kinds to distinct responses. Bodies never carry
// internal detail; the full error is logged.
func statusFor(kind failure.Kind) (int, string) {
	switch kind {
	case failure.KindInvalidInput:
		return http.StatusBadRequest, "invalid input image"
	case failure.KindInference:
		return http.StatusServiceUnavailable, "colourisation model failed"
	case failure.KindStorage:
		return http.StatusBadGateway, "result storage unavailable"
	case failure.KindPipeline:
		return http.StatusInternalServerError, "colourisation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := failure.Classify(err)
	status, msg := statusFor(kind)

	level := slog.LevelError
	if kind == failure.KindInvalidInput {
		level = slog.LevelWarn
	}
	h.log(r).Log(r.Context(), level, "request failed",
		"kind", kind.String(),
		"stage", failure.Stage(err),
		"status", status,
		"error", err)

	http.Error(w, msg, status)
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", requestID(r.Context()), "path", r.URL.Path)
}

func (h *Handler) fetchTimeout() time.Duration {
	if d := h.server.FetchTimeout(); d > 0 {
		return d
	}
	return time.Duration(config.DefaultTimeoutS) * time.Second
}

// confine resolves p against root and rejects paths that leave it.
func confine(root, p string) (string, error) {
	if p == "" {
		return "", failure.InvalidInput("missing path", nil)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", failure.InvalidInput(fmt.Sprintf("path %q is outside the files root", p), nil)
	}
	return p, nil
}
