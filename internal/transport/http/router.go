// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	cmx3600 "github.com/Avalanche-io/edl-changelog"
	"github.com/Avalanche-io/edl-changelog/changelog"
	"github.com/Avalanche-io/edl-changelog/internal/compare"
	"github.com/Avalanche-io/edl-changelog/internal/config"
	"github.com/Avalanche-io/edl-changelog/internal/metrics"
)

type Comparer interface {
	Compare(ctx context.Context, req compare.Request) (*compare.Report, error)
}

type compareRequest struct {
	Old         string `json:"old"`
	New         string `json:"new"`
	OldName     string `json:"old_name"`
	NewName     string `json:"new_name"`
	FPS         int    `json:"fps"`
	KeyStrategy string `json:"key_strategy"`
}

type Deps struct {
	Comparer     Comparer
	Logger       logrus.FieldLogger
	FPS          int
	Delimiter    rune
	MaxBodyBytes int64
	Version      string
	Commit       string
	BuildDate    string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 8 << 20
	}
	delimiter := deps.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	fps := deps.FPS
	if fps == 0 {
		fps = 25
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- COMPARE ----------------

	r.Post("/compare", func(w http.ResponseWriter, r *http.Request) {
		var body compareRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		if err := dec.Decode(&body); err != nil {
			writeBodyError(w, err)
			return
		}

		report, err := deps.Comparer.Compare(r.Context(), compare.Request{
			OldName:     body.OldName,
			NewName:     body.NewName,
			Old:         strings.NewReader(body.Old),
			New:         strings.NewReader(body.New),
			FPS:         body.FPS,
			KeyStrategy: body.KeyStrategy,
		})
		if err != nil {
			if errors.Is(err, cmx3600.ErrEmptyInput) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.WithError(err).Warn("compare failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if wantsCSV(r) {
			var buf bytes.Buffer
			cw := changelog.NewWriter(&buf)
			cw.SetDelimiter(delimiter)
			if err := cw.Write(report.Records); err != nil {
				logger.WithError(err).Error("write csv failed")
				http.Error(w, "failed to write changelog", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="edl_src_changes.csv"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf.Bytes())
			return
		}

		writeJSON(w, http.StatusOK, report)
	})

	// ---------------- NORMALIZE ----------------

	r.Post("/normalize", func(w http.ResponseWriter, r *http.Request) {
		rate := fps
		if raw := r.URL.Query().Get("fps"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || !config.IsSupportedRate(n) {
				http.Error(w, "invalid fps", http.StatusBadRequest)
				return
			}
			rate = n
		}

		decoder := cmx3600.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		decoder.SetRate(rate)
		decoder.SetLogger(logger)
		events, err := decoder.Decode()
		if err != nil {
			writeBodyError(w, err)
			return
		}

		var buf bytes.Buffer
		enc := cmx3600.NewEncoder(&buf)
		enc.SetTitle(decoder.Title())
		if err := enc.Encode(events); err != nil {
			logger.WithError(err).Error("encode edl failed")
			http.Error(w, "failed to encode edl", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Dropped-Events", strconv.Itoa(countDropped(decoder.Warnings())))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, &buf)
	})

	return r
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "invalid request body", http.StatusBadRequest)
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func countDropped(warnings []cmx3600.Warning) int {
	n := 0
	for _, w := range warnings {
		var tcErr *cmx3600.TimecodeError
		if errors.As(w, &tcErr) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func valueOrDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
