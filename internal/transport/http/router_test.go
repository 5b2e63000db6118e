// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	cmx3600 "github.com/Avalanche-io/edl-changelog"
	"github.com/Avalanche-io/edl-changelog/changelog"
	"github.com/Avalanche-io/edl-changelog/internal/compare"
)

const oldEDL = `000001  TAPE1 V C 01:00:00:00 01:00:10:00 00:00:00:00 00:00:10:00
* FROM CLIP NAME: a.mov
000002  TAPE2 V C 02:00:00:00 02:00:01:00 00:00:10:00 00:00:11:00
* FROM CLIP NAME: b.mov
`

const newEDL = `000001  TAPE1 V C 00:59:59:20 01:00:09:15 00:00:00:00 00:00:09:20
* FROM CLIP NAME: a.mov
`

type mockComparer struct {
	got compare.Request
	err error
}

func (m *mockComparer) Compare(ctx context.Context, req compare.Request) (*compare.Report, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &compare.Report{
		FPS: 25,
		Records: []changelog.ChangeRecord{{
			Status:   changelog.StatusRemoved,
			ClipName: "b.mov",
			TapeName: "TAPE2",
			Old:      &changelog.Side{SourceIn: "02:00:00:00", SourceOut: "02:00:01:00", Duration: 25},
			RecordIn: "00:00:10:00",
		}},
		Summary: changelog.Summary{Removed: 1},
	}, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func compareBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func TestRouter_Compare(t *testing.T) {
	comparer := &mockComparer{}
	router := NewRouter(Deps{Comparer: comparer, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/compare", compareBody(t, map[string]any{
		"old":          oldEDL,
		"new":          newEDL,
		"fps":          24,
		"key_strategy": "timeline",
	}))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected %s header", headerRequestID)
	}

	var resp compare.Report
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Removed != 1 || len(resp.Records) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if comparer.got.FPS != 24 || comparer.got.KeyStrategy != "timeline" {
		t.Fatalf("request parameters not forwarded: %+v", comparer.got)
	}
}

func TestRouter_CompareCSV(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger(), Delimiter: ';'})

	req := httptest.NewRequest(http.MethodPost, "/compare?format=csv", compareBody(t, map[string]any{
		"old": oldEDL,
		"new": newEDL,
	}))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv got %q", ct)
	}

	r := csv.NewReader(rec.Body)
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "Removed" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRouter_CompareWithService(t *testing.T) {
	svc := compare.NewService(compare.Options{FPS: 25, Strategy: changelog.IdentityKey}, discardLogger(), nil)
	router := NewRouter(Deps{Comparer: svc, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/compare", compareBody(t, map[string]any{
		"old": oldEDL,
		"new": newEDL,
	}))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Summary changelog.Summary `json:"summary"`
		Records []struct {
			Status string `json:"status"`
			Head   string `json:"head"`
			Tail   string `json:"tail"`
		} `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Modified != 1 || resp.Summary.Removed != 1 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
	if resp.Records[0].Head != "extend (5f)" || resp.Records[0].Tail != "trim (10f)" {
		t.Fatalf("unexpected modified record %+v", resp.Records[0])
	}
}

func TestRouter_CompareBadBody(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/compare", strings.NewReader("{"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_CompareErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "empty input", err: cmx3600.ErrEmptyInput, want: http.StatusUnprocessableEntity},
		{name: "other", err: errors.New("fps 26 is not supported"), want: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(Deps{Comparer: &mockComparer{err: tc.err}, Logger: discardLogger()})

			req := httptest.NewRequest(http.MethodPost, "/compare", compareBody(t, map[string]any{"old": "", "new": ""}))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected status %d got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRouter_Normalize(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger()})

	body := "TITLE: messy\n\n" +
		"000001   A001-C003    V   C   01:00:00:00 01:00:01:00 00:00:00:00 00:00:01:00\n" +
		"*FROM CLIP NAME:   a.mov   \n" +
		"*LOC: 00:00:00:05 RED note abc_001_0002\n" +
		"000002  TAPE2 V C 01:00:00;00 01:00:01:00 00:00:01:00 00:00:02:00\n"

	req := httptest.NewRequest(http.MethodPost, "/normalize?fps=25", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if rec.Header().Get("X-Dropped-Events") != "1" {
		t.Fatalf("expected 1 dropped event got %q", rec.Header().Get("X-Dropped-Events"))
	}

	out := rec.Body.String()
	for _, want := range []string{"TITLE: messy", "000001  A001-C003 V", "* FROM CLIP NAME: a.mov\n", "* LOC: abc_001_0002"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "TAPE2") {
		t.Fatalf("dropped event must not be written:\n%s", out)
	}
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger(), MaxBodyBytes: 64})

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "compare", path: "/compare", body: `{"old":"` + strings.Repeat("x", 128) + `","new":""}`},
		{name: "normalize", path: "/normalize", body: strings.Repeat("* LOC: padding\n", 16)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))

			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("expected status 413 got %d", rec.Code)
			}
		})
	}
}

func TestRouter_NormalizeBadFPS(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/normalize?fps=abc", strings.NewReader(""))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_HealthAndVersion(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger(), Version: "1.2.3"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["version"] != "1.2.3" || resp["commit"] != "none" {
		t.Fatalf("unexpected version response %v", resp)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(Deps{Comparer: &mockComparer{}, Logger: discardLogger()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "edl_comparisons_total") {
		t.Fatalf("expected edl_comparisons_total in metrics output")
	}
}
