package serving

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeScorer struct {
	pairs  [][]Pair
	scores []float64
	err    error
}

func (f *fakeScorer) Score(_ context.Context, pairs []Pair) ([]float64, error) {
	f.pairs = append(f.pairs, pairs)
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(pairs)], nil
}

func doRequest(t *testing.T, scorer Scorer, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewServer(scorer, nil).Router()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPingAlwaysHealthy(t *testing.T) {
	w := doRequest(t, &fakeScorer{err: fmt.Errorf("model not loaded")}, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", gjson.Get(w.Body.String(), "status").String())
}

func TestInvocations_JSONPairs(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.91, 0.42}}
	w := doRequest(t, scorer, http.MethodPost, "/invocations", "application/json",
		`{"data":[{"src":"hello","mt":"hallo"},{"src":"world","mt":"welt"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	predictions := gjson.Get(w.Body.String(), "predictions").Array()
	require.Len(t, predictions, 2)
	require.Equal(t, 0.91, predictions[0].Get("score").Float())
	require.Equal(t, 0.42, predictions[1].Get("score").Float())

	require.Len(t, scorer.pairs, 1)
	require.Equal(t, []Pair{{Src: "hello", MT: "hallo"}, {Src: "world", MT: "welt"}}, scorer.pairs[0])
}

func TestInvocations_JSONLRecords(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.88}}
	body := `{"recordId":"a","source_text":"hello","translated_text":"hallo"}` + "\n" +
		`{"recordId":"b","source_text":"broken"}` + "\n"
	w := doRequest(t, scorer, http.MethodPost, "/invocations", "application/jsonl", body)

	require.Equal(t, http.StatusOK, w.Code)
	predictions := gjson.Get(w.Body.String(), "predictions").Array()
	require.Len(t, predictions, 2)
	require.Equal(t, "a", predictions[0].Get("recordId").String())
	require.Equal(t, 0.88, predictions[0].Get("score").Float())
	require.Equal(t, "b", predictions[1].Get("recordId").String())
	require.Equal(t, gjson.Null, predictions[1].Get("score").Type)

	// Only the record with a translation reaches the model.
	require.Len(t, scorer.pairs, 1)
	require.Equal(t, []Pair{{Src: "hello", MT: "hallo"}}, scorer.pairs[0])
}

func TestInvocations_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		scorer      *fakeScorer
		wantCode    int
	}{
		{"empty json data", "application/json", `{"data":[]}`, &fakeScorer{}, http.StatusInternalServerError},
		{"empty jsonl body", "application/jsonl", "\n", &fakeScorer{}, http.StatusInternalServerError},
		{"unsupported content type", "text/plain", "hello", &fakeScorer{}, http.StatusUnsupportedMediaType},
		{"scorer failure", "application/json", `{"data":[{"src":"a","mt":"b"}]}`,
			&fakeScorer{err: fmt.Errorf("backend down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, tt.scorer, http.MethodPost, "/invocations", tt.contentType, tt.body)
			require.Equal(t, tt.wantCode, w.Code)
			require.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func TestBackendScore(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/score", r.URL.Path)
		buf, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(buf)
		fmt.Fprint(w, `{"scores":[0.5,0.75]}`)
	}))
	defer srv.Close()

	backend := NewBackend(srv.URL)
	scores, err := backend.Score(context.Background(), []Pair{{Src: "a", MT: "b"}, {Src: "c", MT: "d"}})
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.75}, scores)
	require.Equal(t, "a", gjson.Get(gotBody, "data.0.src").String())
	require.Equal(t, "d", gjson.Get(gotBody, "data.1.mt").String())
}

func TestBackendScore_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"scores":[0.5]}`)
	}))
	defer srv.Close()

	backend := NewBackend(srv.URL)
	_, err := backend.Score(context.Background(), []Pair{{Src: "a", MT: "b"}, {Src: "c", MT: "d"}})
	require.Error(t, err)
}
