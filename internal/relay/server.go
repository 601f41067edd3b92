package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"tryon-studio/internal/catalog"
	"tryon-studio/internal/tryon"
)

const defaultMaxBodyBytes = 25 << 20

type ServerOptions struct {
	Pipeline     *tryon.Pipeline
	Configured   bool
	Catalog      *catalog.Catalog
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type Server struct {
	pipeline     *tryon.Pipeline
	configured   bool
	catalog      *catalog.Catalog
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewServer(opts ServerOptions) *Server {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cat := opts.Catalog
	if cat == nil {
		cat, _ = catalog.New(nil)
	}

	return &Server{
		pipeline:     opts.Pipeline,
		configured:   opts.Configured && opts.Pipeline != nil,
		catalog:      cat,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, GenerateResponse{Error: "Method Not Allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, GenerateResponse{Error: "not found"})
	})

	r.Post(Path, s.handleGenerate)
	r.Get("/api/catalog", s.handleCatalog)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return r
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var body GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, GenerateResponse{Error: "Images are too large", Code: string(tryon.KindInvalidInput)})
			return
		}
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: "Invalid JSON body", Code: string(tryon.KindInvalidInput)})
		return
	}

	if strings.TrimSpace(body.PersonImage) == "" || strings.TrimSpace(body.ClothingImage) == "" {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: "Missing images", Code: string(tryon.KindInvalidInput)})
		return
	}

	if !s.configured {
		s.logger.Error("generation credential is not configured", "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, GenerateResponse{Error: "Server configuration error", Code: string(tryon.KindPermissionDenied)})
		return
	}

	person, err := tryon.ParseUploadedImage(body.PersonImage)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: tryon.MessageUnreadableImage, Code: string(tryon.KindInvalidInput)})
		return
	}
	garment, err := tryon.ParseUploadedImage(body.ClothingImage)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: tryon.MessageUnreadableImage, Code: string(tryon.KindInvalidInput)})
		return
	}

	out := s.pipeline.Run(r.Context(), person, garment)
	if !out.OK() {
		writeJSON(w, out.Failure.Kind.HTTPStatus(), GenerateResponse{
			Error: out.Failure.Message,
			Code:  string(out.Failure.Kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{Result: out.ImageReference})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Entries())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}
