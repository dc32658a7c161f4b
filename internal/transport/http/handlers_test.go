package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/application"
	"github.com/veridoc/veridoc/internal/cases"
	"github.com/veridoc/veridoc/internal/hardening"
	"github.com/veridoc/veridoc/internal/testutils"
)

// routerFixture runs the full router over a real service composed from
// scripted LLM clients, mirroring the production wiring.
type routerFixture struct {
	router http.Handler
	vision *testutils.StubLLMClient
	ocr    *testutils.StubLLMClient
	auth   *testutils.StubLLMClient
}

func newRouterFixture(t *testing.T, mutate ...func(*application.Config)) *routerFixture {
	t.Helper()
	cfg := application.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	vision := testutils.NewStubLLMClient("stub-vision").
		AddScript(testutils.Script{Pattern: "issuing_country", Response: testutils.PassportJSON}).
		AddScript(testutils.Script{Pattern: "issuing_state", Response: testutils.LicenseJSON})
	ocr := testutils.NewStubLLMClient("stub-ocr").
		AddScript(testutils.Script{Pattern: "transcribe", Response: "UNITED STATES PASSPORT"})
	auth := testutils.NewStubLLMClient("stub-authenticity").
		AddScript(testutils.Script{Pattern: "mrz", Response: testutils.AuthenticityJSON(false, 0.92)}).
		AddScript(testutils.Script{Pattern: "pdf417", Response: testutils.AuthenticityJSON(false, 0.92)})

	logger := zap.NewNop()
	extractor, err := application.NewExtractor(vision, cfg.Prompts, logger)
	require.NoError(t, err)
	inferrer, err := application.NewTypeInferrer(ocr, cfg.Prompts.Transcription, logger)
	require.NoError(t, err)
	probe, err := application.NewAuthenticityProbe(auth, cfg.Prompts, logger)
	require.NoError(t, err)
	runner, err := application.BuildRunner(cfg.Pipeline, nil)
	require.NoError(t, err)
	registry, err := cfg.SchemaRegistry()
	require.NoError(t, err)
	orch, err := application.NewOrchestrator(hardening.NewHardener(logger), registry, runner, nil, logger)
	require.NoError(t, err)

	service, err := application.NewService(cfg, application.ServiceDeps{
		Extractor:    extractor,
		Inferrer:     inferrer,
		Authenticity: probe,
		Orchestrator: orch,
		Schemas:      registry,
		Store:        cases.NewMemoryStore(),
		Logger:       logger,
	})
	require.NoError(t, err)

	return &routerFixture{
		router: NewRouter(NewHandler(service, cfg.Server, logger)),
		vision: vision,
		ocr:    ocr,
		auth:   auth,
	}
}

// filePart is one file in a multipart request body.
type filePart struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		if f.contentType != "" {
			hdr.Set("Content-Type", f.contentType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func jpegPart(field string) filePart {
	return filePart{field: field, name: "scan.jpg", contentType: "image/jpeg", data: testutils.SampleJPEG().Data}
}

func (fx *routerFixture) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	fx := newRouterFixture(t)
	w := fx.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newRouterFixture(t)
	w := fx.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyType(t *testing.T) {
	fx := newRouterFixture(t)

	t.Run("match", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify_type", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeJSON(t, w)
		assert.Equal(t, "passport", resp["expected_type"])
		assert.Equal(t, "passport", resp["inferred_type"])
		assert.Equal(t, true, resp["match"])
	})

	t.Run("mismatch", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "drivers_license"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify_type", body, ct)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeJSON(t, w)
		assert.Equal(t, "passport", resp["inferred_type"])
		assert.Equal(t, false, resp["match"])
	})

	t.Run("missing doc_type", func(t *testing.T) {
		body, ct := multipartBody(t, nil, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify_type", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unknown_doc_type", decodeJSON(t, w)["error"])
	})
}

func TestExtract(t *testing.T) {
	fx := newRouterFixture(t)

	t.Run("license fields", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "drivers_license"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/extract", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeJSON(t, w)
		assert.Equal(t, "drivers_license", resp["doc_type"])
		extracted := resp["extracted"].(map[string]any)
		assert.Equal(t, "JANE DOE", extracted["name"])
		assert.Equal(t, "CA", extracted["issuing_state"])
		// No validators on the extraction endpoint.
		assert.NotContains(t, resp, "validators")
	})

	t.Run("unknown doc_type", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "visa"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/extract", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeJSON(t, w)
		assert.Equal(t, "unknown_doc_type", resp["error"])
		assert.Contains(t, resp["error_description"], "visa")
	})

	t.Run("unrecoverable model output", func(t *testing.T) {
		fx := newRouterFixture(t)
		fx.vision.Reset()
		fx.vision.SetFallback("I cannot read this image.")

		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/extract", body, ct)
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "extraction_unrecoverable", decodeJSON(t, w)["error"])
	})
}

func TestExtractBoth(t *testing.T) {
	fx := newRouterFixture(t)

	t.Run("both field sets", func(t *testing.T) {
		body, ct := multipartBody(t, nil, jpegPart(formFieldPassport), jpegPart(formFieldDriversLicense))
		w := fx.do(t, http.MethodPost, "/extract/both", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeJSON(t, w)
		passport := resp["passport"].(map[string]any)
		license := resp["drivers_license"].(map[string]any)
		assert.Equal(t, "USA", passport["issuing_country"])
		assert.Equal(t, "CA", license["issuing_state"])
	})

	t.Run("missing license file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, jpegPart(formFieldPassport))
		w := fx.do(t, http.MethodPost, "/extract/both", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeJSON(t, w)
		assert.Equal(t, "missing_file", resp["error"])
		assert.Contains(t, resp["error_description"], formFieldDriversLicense)
	})
}

func TestVerify(t *testing.T) {
	t.Run("standalone document", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeJSON(t, w)
		assert.NotEmpty(t, resp["doc_id"])
		assert.Equal(t, "passport", resp["doc_type"])
		assert.Equal(t, "stub-vision", resp["model"])
		assert.Equal(t, "pass", resp["final_status"])
		assert.Equal(t, float64(0), resp["score"])
		assert.Len(t, resp["validators"].([]any), 3)
		authenticity := resp["authenticity"].(map[string]any)
		assert.Equal(t, false, authenticity["is_suspected_fraud"])
	})

	t.Run("doc_type inferred when absent", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, nil, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "passport", decodeJSON(t, w)["doc_type"])
	})

	t.Run("undetermined doc_type", func(t *testing.T) {
		fx := newRouterFixture(t)
		fx.ocr.Reset()
		fx.ocr.SetFallback("COFFEE LOYALTY CARD")

		body, ct := multipartBody(t, nil, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "doc_type_undetermined", decodeJSON(t, w)["error"])
	})

	t.Run("unknown case", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, map[string]string{
			formFieldDocType: "passport",
			formFieldCaseID:  "no-such-case",
		}, jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "case_not_found", decodeJSON(t, w)["error"])
	})
}

func TestCaseFlow(t *testing.T) {
	fx := newRouterFixture(t)

	created := fx.do(t, http.MethodPost, "/cases", nil, "")
	require.Equal(t, http.StatusCreated, created.Code)
	caseID := decodeJSON(t, created)["case_id"].(string)
	require.NotEmpty(t, caseID)

	body, ct := multipartBody(t, map[string]string{
		formFieldDocType: "passport",
		formFieldCaseID:  caseID,
	}, jpegPart(formFieldFiles))
	verified := fx.do(t, http.MethodPost, "/verify", body, ct)
	require.Equal(t, http.StatusOK, verified.Code, verified.Body.String())
	assert.Equal(t, caseID, decodeJSON(t, verified)["case_id"])

	// The listing masks sensitive values.
	recent := fx.do(t, http.MethodGet, "/cases/recent", nil, "")
	require.Equal(t, http.StatusOK, recent.Code)
	listed := decodeJSON(t, recent)["cases"].([]any)
	require.Len(t, listed, 1)
	results := listed[0].(map[string]any)["results"].([]any)
	require.Len(t, results, 1)
	maskedID := results[0].(map[string]any)["extracted"].(map[string]any)["id_number"]
	assert.Equal(t, "P1••••6789", maskedID)

	// The detail view keeps the real values.
	detail := fx.do(t, http.MethodGet, "/cases/"+caseID, nil, "")
	require.Equal(t, http.StatusOK, detail.Code)
	detailResults := decodeJSON(t, detail)["results"].([]any)
	realID := detailResults[0].(map[string]any)["extracted"].(map[string]any)["id_number"]
	assert.Equal(t, "P123456789", realID)

	// Flag for review and read it back.
	review := fx.do(t, http.MethodPost, "/cases/"+caseID+"/review",
		bytes.NewBufferString(`{"review": true}`), "application/json")
	require.Equal(t, http.StatusOK, review.Code)

	flagged := fx.do(t, http.MethodGet, "/cases/"+caseID, nil, "")
	require.Equal(t, http.StatusOK, flagged.Code)
	assert.Equal(t, true, decodeJSON(t, flagged)["review"])
}

func TestCaseEndpoints_Errors(t *testing.T) {
	fx := newRouterFixture(t)

	t.Run("get unknown case", func(t *testing.T) {
		w := fx.do(t, http.MethodGet, "/cases/absent", nil, "")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "case_not_found", decodeJSON(t, w)["error"])
	})

	t.Run("review with invalid body", func(t *testing.T) {
		w := fx.do(t, http.MethodPost, "/cases/absent/review", bytes.NewBufferString("not json"), "application/json")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
	})

	t.Run("review on unknown case", func(t *testing.T) {
		w := fx.do(t, http.MethodPost, "/cases/absent/review", bytes.NewBufferString(`{"review": true}`), "application/json")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty recent listing", func(t *testing.T) {
		w := fx.do(t, http.MethodGet, "/cases/recent", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decodeJSON(t, w)["cases"])
	})
}

func TestUploadConstraints(t *testing.T) {
	t.Run("too many files", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"},
			jpegPart(formFieldFiles), jpegPart(formFieldFiles), jpegPart(formFieldFiles))
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "too_many_files", decodeJSON(t, w)["error"])
	})

	t.Run("unsupported extension", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"},
			filePart{field: formFieldFiles, name: "scan.gif", contentType: "image/gif", data: []byte("GIF89a")})
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeJSON(t, w)
		assert.Equal(t, "unsupported_file_type", resp["error"])
		assert.Contains(t, resp["error_description"], "gif")
	})

	t.Run("file larger than the per-file limit", func(t *testing.T) {
		fx := newRouterFixture(t, func(cfg *application.Config) {
			cfg.Server.MaxUploadBytes = 16
		})
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"},
			filePart{field: formFieldFiles, name: "scan.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte{0xFF}, 64)})
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "file_too_large", decodeJSON(t, w)["error"])
	})

	t.Run("body that is not multipart", func(t *testing.T) {
		fx := newRouterFixture(t)
		w := fx.do(t, http.MethodPost, "/verify", bytes.NewBufferString(`{"doc_type": "passport"}`), "application/json")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_multipart", decodeJSON(t, w)["error"])
	})

	t.Run("no file at all", func(t *testing.T) {
		fx := newRouterFixture(t)
		body, ct := multipartBody(t, map[string]string{formFieldDocType: "passport"})
		w := fx.do(t, http.MethodPost, "/verify", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_file", decodeJSON(t, w)["error"])
	})
}
