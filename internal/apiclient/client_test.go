package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"learnapp/internal/cachepolicy"
	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_UploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "page.png", header.Filename)
		assert.Equal(t, "png-bytes", string(data))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"extractedText": "抽出されたテキスト",
			"confidence":    0.8,
			"metadata":      map[string]interface{}{"filename": "page.png", "textLength": 9},
		})
	}))
	defer srv.Close()

	result, err := New(srv.URL).UploadImage(context.Background(), File{Name: "page.png", Data: []byte("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "抽出されたテキスト", result.ExtractedText)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, 9, result.Metadata.TextLength)
}

func TestClient_UploadBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["images"], 3)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success":          true,
			"extractedText":    "a\n\nb",
			"processedBatches": 1,
			"failedBatches":    0,
			"totalImages":      3,
		})
	}))
	defer srv.Close()

	files := []File{{Name: "1.png"}, {Name: "2.png"}, {Name: "3.png"}}
	outcome, err := New(srv.URL).UploadBatch(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", outcome.CombinedText)
	assert.Equal(t, 3, outcome.TotalImages)
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.Subject("math"), req.Subject)
		writeJSON(t, w, http.StatusOK, models.GenerationResult{
			Success:         true,
			DetectedSubject: "math",
			Questions: []models.Question{
				{ID: "q1", QuestionText: "1+1は？", Options: []string{"1", "2"}, CorrectAnswer: models.IndexAnswer(1)},
			},
		})
	}))
	defer srv.Close()

	result, err := New(srv.URL).Generate(context.Background(), models.GenerationRequest{Text: "足し算", Subject: "math"})
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, "2", result.Questions[0].CorrectAnswerText())
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/questions/generate":
			writeJSON(t, w, http.StatusBadRequest, map[string]interface{}{
				"success":  false,
				"code":     "INVALID_INPUT",
				"severity": "warn",
				"error":    "テキストが短すぎます",
				"details":  "text must be at least 20 characters, got 2",
			})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Generate(context.Background(), models.GenerationRequest{Text: "短い"})
	require.Error(t, err)
	var appErr *contextutils.AppError
	require.True(t, contextutils.AsError(err, &appErr))
	assert.Equal(t, contextutils.ErrorCodeInvalidInput, appErr.Code)
	assert.Equal(t, "テキストが短すぎます", appErr.Message)
	assert.Contains(t, appErr.Details, "20 characters")

	_, err = client.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeServiceUnavailable, contextutils.GetErrorCode(err))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(addr).Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeServiceUnavailable, contextutils.GetErrorCode(err))
}

func TestClient_CachedConfig(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/api/questions/config":
			writeJSON(t, w, http.StatusOK, models.QuestionConfig{
				Subjects: []models.CatalogEntry{{ID: "math", Name: "数学"}},
			})
		case "/api/questions/sample/math":
			assert.Equal(t, "basic", r.URL.Query().Get("difficulty"))
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"success":   true,
				"subject":   "math",
				"questions": []models.Question{{ID: "s1", QuestionText: "2+3は？"}},
			})
		}
	}))
	defer srv.Close()

	client := New(srv.URL, WithCache(cachepolicy.NewResponseCache(0)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cfg, err := client.QuestionConfig(ctx)
		require.NoError(t, err)
		require.Len(t, cfg.Subjects, 1)
	}
	assert.Equal(t, int32(1), hits.Load())

	questions, err := client.Sample(ctx, "math", "basic")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "s1", questions[0].ID)
	assert.Equal(t, int32(2), hits.Load())
}
