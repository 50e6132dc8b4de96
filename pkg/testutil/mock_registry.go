package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockRegistry serves the vehicle registry lookup endpoint. Unknown numbers
// answer with an empty vehicle list, the way the real registry does.
type MockRegistry struct {
	server *httptest.Server
	apiKey string

	mu       sync.Mutex
	vehicles map[string]map[string]any
	status   int
	requests []string
}

// NewMockRegistry starts a registry accepting apiKey
func NewMockRegistry(apiKey string) *MockRegistry {
	r := &MockRegistry{
		apiKey:   apiKey,
		vehicles: make(map[string]map[string]any),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.handle))
	return r
}

// URL returns the base URL to configure the registry client with
func (r *MockRegistry) URL() string {
	return r.server.URL + "/kjoretoydata"
}

// Stop shuts the server down
func (r *MockRegistry) Stop() {
	r.server.Close()
}

// AddVehicle registers a vehicle with the given make, model and first
// registration year under number
func (r *MockRegistry) AddVehicle(number, brand, model string, year int) {
	display := number
	if len(number) == 7 {
		display = number[:2] + " " + number[2:]
	}
	r.AddRecord(number, map[string]any{
		"kjoretoyId": map[string]any{
			"kjennemerke":       display,
			"understellsnummer": "5YJ3E7EA" + number,
		},
		"godkjenning": map[string]any{
			"tekniskGodkjenning": map[string]any{
				"tekniskeData": map[string]any{
					"generelt": map[string]any{
						"merke":             []any{map[string]any{"merke": brand}},
						"handelsbetegnelse": []any{model},
					},
				},
			},
		},
		"forstegangsregistrering": map[string]any{
			"registrertForstegangNorgeDato": strconv.Itoa(year) + "-03-14",
		},
	})
}

// AddRecord registers a raw vehicle document under number
func (r *MockRegistry) AddRecord(number string, record map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[number] = record
}

// FailWith makes every request answer with status until reset with 0
func (r *MockRegistry) FailWith(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// Requests returns the numbers looked up so far
func (r *MockRegistry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// RequestCount returns how many times number was looked up
func (r *MockRegistry) RequestCount(number string) int {
	count := 0
	for _, n := range r.Requests() {
		if n == number {
			count++
		}
	}
	return count
}

func (r *MockRegistry) handle(w http.ResponseWriter, req *http.Request) {
	number := req.URL.Query().Get("kjennemerke")

	r.mu.Lock()
	r.requests = append(r.requests, number)
	status := r.status
	record, ok := r.vehicles[number]
	r.mu.Unlock()

	if strings.TrimPrefix(req.Header.Get("SVV-Authorization"), "Apikey ") != r.apiKey {
		http.Error(w, `{"feilmelding":"ugyldig apikey"}`, http.StatusForbidden)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	list := []any{}
	if ok {
		list = append(list, record)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"kjoretoydataListe": list})
}
