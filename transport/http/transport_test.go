package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/ragdoc"
	"github.com/flarexio/ragdoc/llm/mock"
	"github.com/flarexio/ragdoc/persistence/chromem"
	"github.com/flarexio/ragdoc/vector"
)

const testActionKey = "s3cret"

type httpTestSuite struct {
	suite.Suite
	embedder  *mock.Embedder
	generator *mock.Generator
	router    *gin.Engine
}

func (suite *httpTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *httpTestSuite) SetupTest() {
	suite.embedder = mock.NewEmbedder()
	suite.generator = mock.NewGenerator("It ends the lease [1].")

	db, err := chromem.NewChromemVectorDB(vector.Config{}, ragdoc.QueryEmbeddingFunc(suite.embedder, 0))
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	svc, err := ragdoc.NewService(ragdoc.DefaultConfig(), db, suite.embedder, suite.generator)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	r := gin.New()
	AddRouters(r, ragdoc.MakeEndpoints(svc), testActionKey)

	suite.router = r
}

func (suite *httpTestSuite) do(method string, target string, body any, key string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderActionKey, key)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *httpTestSuite) ingest(key string, client string, filename string, content string) *httptest.ResponseRecorder {
	return suite.do(http.MethodPost, "/ingest_json", map[string]string{
		"client":      client,
		"filename":    filename,
		"content_b64": content,
	}, key)
}

func (suite *httpTestSuite) ingestLease() {
	content := base64.StdEncoding.EncodeToString([]byte("A tenancy clause.\n\nA termination clause."))

	w := suite.ingest(testActionKey, "acme", "lease.txt", content)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *httpTestSuite) TestHome() {
	w := suite.do(http.MethodGet, "/", nil, "")

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"ok":true,"msg":"RAG API is running."}`, w.Body.String())
}

func (suite *httpTestSuite) TestIngest() {
	content := base64.StdEncoding.EncodeToString([]byte("A tenancy clause.\n\nA termination clause."))

	w := suite.ingest(testActionKey, "acme", "lease.txt", content)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"ok":true,"client":"acme","filename":"lease.txt","added":2}`, w.Body.String())
}

func (suite *httpTestSuite) TestIngestUnauthorized() {
	content := base64.StdEncoding.EncodeToString([]byte("A tenancy clause."))

	w := suite.ingest("", "acme", "lease.txt", content)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.ingest("wrong", "acme", "lease.txt", content)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.JSONEq(`{"detail":"invalid action key"}`, w.Body.String())

	suite.Equal(0, suite.embedder.Calls(), "rejected requests never reach the service")
}

func (suite *httpTestSuite) TestIngestInvalidBase64() {
	w := suite.ingest(testActionKey, "acme", "bad.txt", "%%%")

	suite.Equal(http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Contains(resp.Detail, ragdoc.ErrInvalidEncoding.Error())
}

func (suite *httpTestSuite) TestIngestNoContent() {
	content := base64.StdEncoding.EncodeToString([]byte("\n\n   \n\n"))

	w := suite.ingest(testActionKey, "acme", "blank.txt", content)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.JSONEq(`{"detail":"no content to index"}`, w.Body.String())
}

func (suite *httpTestSuite) TestIngestMissingFields() {
	w := suite.do(http.MethodPost, "/ingest_json", map[string]string{
		"client": "acme",
	}, testActionKey)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *httpTestSuite) TestIngestUpstreamFailure() {
	suite.embedder.Err = errors.New("status 500: model overloaded")

	content := base64.StdEncoding.EncodeToString([]byte("A tenancy clause."))
	w := suite.ingest(testActionKey, "acme", "lease.txt", content)

	suite.Equal(http.StatusBadGateway, w.Code)
	suite.Contains(w.Body.String(), "model overloaded")
}

func (suite *httpTestSuite) TestAsk() {
	suite.ingestLease()

	w := suite.do(http.MethodPost, "/ask", map[string]any{
		"client": "acme",
		"q":      "What does the termination clause say?",
		"top_k":  1,
	}, testActionKey)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{
	  "answer": "It ends the lease [1].",
	  "sources": [
	    {"id": 1, "filename": "lease.txt", "snippet": "A termination clause."}
	  ]
	}`, w.Body.String())
}

func (suite *httpTestSuite) TestAskEmptyPartition() {
	w := suite.do(http.MethodPost, "/ask", map[string]any{
		"client": "nobody",
		"q":      "anything?",
	}, testActionKey)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"answer":"Not found in the provided documents.","sources":[]}`, w.Body.String())
	suite.Equal(0, suite.generator.Calls())
}

func (suite *httpTestSuite) TestAskUnauthorized() {
	w := suite.do(http.MethodPost, "/ask", map[string]any{
		"client": "acme",
		"q":      "anything?",
	}, "wrong")

	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *httpTestSuite) TestAskUpstreamFailure() {
	suite.ingestLease()
	suite.generator.Err = errors.New("status 429: rate limited")

	w := suite.do(http.MethodPost, "/ask", map[string]any{
		"client": "acme",
		"q":      "termination",
	}, testActionKey)

	suite.Equal(http.StatusBadGateway, w.Code)
}

func (suite *httpTestSuite) TestStats() {
	suite.ingestLease()

	w := suite.do(http.MethodGet, "/stats?client=acme", nil, "")

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"client":"acme","count":2}`, w.Body.String())

	w = suite.do(http.MethodGet, "/stats", nil, "")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *httpTestSuite) TestSearch() {
	suite.ingestLease()

	w := suite.do(http.MethodGet, "/search?client=acme&q=termination+clause&top_k=1", nil, "")

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{
	  "client": "acme",
	  "q": "termination clause",
	  "hits": [
	    {"filename": "lease.txt", "preview": "A termination clause."}
	  ]
	}`, w.Body.String())
}

func (suite *httpTestSuite) TestStatusCode() {
	suite.Equal(http.StatusBadRequest, StatusCode(ragdoc.ErrNoContent))
	suite.Equal(http.StatusUnauthorized, StatusCode(ragdoc.ErrUnauthorized))
	suite.Equal(http.StatusBadGateway, StatusCode(ragdoc.ErrUpstream))
	suite.Equal(http.StatusInternalServerError, StatusCode(errors.New("disk full")))
}

func TestHTTPTestSuite(t *testing.T) {
	suite.Run(t, new(httpTestSuite))
}
