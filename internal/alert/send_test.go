package alert

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsToWebhook(t *testing.T) {
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	err := Send(t.Context(), ts.URL, sampleAlert())
	require.NoError(t, err)
	assert.Contains(t, string(gotBody), "Acme")
}

func TestSend_RejectsNonHTTPWebhook(t *testing.T) {
	err := Send(t.Context(), "", sampleAlert())
	assert.Error(t, err)

	err = Send(t.Context(), "not-a-url", sampleAlert())
	assert.Error(t, err)
}

func TestSend_PropagatesNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := Send(t.Context(), ts.URL, sampleAlert())
	assert.Error(t, err)
}
