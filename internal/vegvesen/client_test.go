package vegvesen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient starts a server running handler and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := zap.NewDevelopment()
	opts = append([]Option{WithBaseURL(server.URL)}, opts...)
	return NewClient("test-key", logger, opts...)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestLookup_SendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		respond(http.StatusOK, `{"kjoretoydataListe":[{"kjoretoyId":{"kjennemerke":"AB 12345"}}]}`)(w, r)
	})

	_, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "AB12345", got.URL.Query().Get("kjennemerke"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "Apikey test-key", got.Header.Get("SVV-Authorization"))
}

func TestLookup_UnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{
		"kjoretoydataListe": [
			{"kjoretoyId": {"kjennemerke": "AB 12345"}, "vekt": 1500},
			{"kjoretoyId": {"kjennemerke": "ignored"}}
		]
	}`))

	rec, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)

	id, ok := rec["kjoretoyId"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AB 12345", id["kjennemerke"])
	assert.Equal(t, json.Number("1500"), rec["vekt"])
}

func TestLookup_BareVehicle(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{"kjoretoyId":{"kjennemerke":"AB 12345"}}`))

	rec, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Contains(t, rec, "kjoretoyId")
}

func TestLookup_UnrecognisedObjectReturnedAsIs(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{"something":"else"}`))

	rec, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, Record{"something": "else"}, rec)
}

func TestLookup_NonObjectBodyReturnsEmptyRecord(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `[1,2,3]`))

	rec, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Empty(t, rec)
	assert.NotNil(t, rec)
}

func TestLookup_EmptyListIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty list", `{"kjoretoydataListe":[]}`},
		{"null", `{"kjoretoydataListe":null}`},
		{"empty object", `{"kjoretoydataListe":{}}`},
		{"empty string", `{"kjoretoydataListe":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, respond(http.StatusOK, tt.body))

			rec, err := client.Lookup(context.Background(), "AB12345")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Nil(t, rec)
		})
	}
}

func TestLookup_NonObjectListEntryReturnsEmptyRecord(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null entry", `{"kjoretoydataListe":[null]}`},
		{"string entry", `{"kjoretoydataListe":["AB12345"]}`},
		{"object instead of list", `{"kjoretoydataListe":{"kjoretoyId":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, respond(http.StatusOK, tt.body))

			rec, err := client.Lookup(context.Background(), "AB12345")
			require.NoError(t, err)
			assert.NotNil(t, rec)
			assert.Empty(t, rec)
		})
	}
}

func TestLookup_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuth},
		{"forbidden", http.StatusForbidden, ErrAuth},
		{"bad request", http.StatusBadRequest, ErrAPI},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusInternalServerError, ErrAPI},
		{"bad gateway", http.StatusBadGateway, ErrAPI},
		{"teapot", http.StatusTeapot, ErrAPI},
		{"redirect without location", http.StatusMultipleChoices, ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, respond(tt.status, `{}`))

			_, err := client.Lookup(context.Background(), "AB12345")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLookup_AnySuccessStatusAccepted(t *testing.T) {
	client := newTestClient(t, respond(http.StatusAccepted, `{"kjoretoyId":{}}`))

	rec, err := client.Lookup(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Contains(t, rec, "kjoretoyId")
}

func TestLookup_MalformedJSON(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{"kjoretoydataListe": [`))

	_, err := client.Lookup(context.Background(), "AB12345")
	assert.ErrorIs(t, err, ErrAPI)
}

func TestLookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	t.Cleanup(func() { close(release) })

	_, err := client.Lookup(context.Background(), "AB12345")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "timed out")
}

func TestLookup_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient("test-key", logger, WithBaseURL(url))

	_, err := client.Lookup(context.Background(), "AB12345")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"bad request still proves key", http.StatusBadRequest, true},
		{"not found still proves key", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"forbidden", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var number string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				number = r.URL.Query().Get("kjennemerke")
				w.WriteHeader(tt.status)
			})

			ok, err := client.ValidateKey(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, "AA00000", number)
		})
	}
}

func TestValidateKey_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient("test-key", logger, WithBaseURL(url))

	ok, err := client.ValidateKey(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrConnection)
}
