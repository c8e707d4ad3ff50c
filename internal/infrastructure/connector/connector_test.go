package connector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/infrastructure/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_UnresolvedConnectorIDSucceedsWithNoSideEffect(t *testing.T) {
	r := connector.New(nil)
	resp, err := r.Invoke(context.Background(), graph.Connector{ID: "missing"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestInvoke_JoinsBaseURLAndPathAndReturnsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/tickets", req.URL.Path)
		assert.Equal(t, "application/json", req.Header.Get("content-type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "i1", body["id_instance"])

		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ticket_id": "T-9"})
	}))
	defer srv.Close()

	r := connector.New(map[string]connector.Datasource{
		"tickets-api": {Type: "http", URL: srv.URL},
	})

	resp, err := r.Invoke(context.Background(), graph.Connector{ID: "tickets-api", URL: "/tickets", Method: "POST"}, nil, map[string]interface{}{"id_instance": "i1"})
	require.NoError(t, err)
	assert.Equal(t, "T-9", resp["ticket_id"])
}

func TestInvoke_NonSuccessStatusReturnsConnectorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	r := connector.New(map[string]connector.Datasource{
		"tickets-api": {Type: "http", URL: srv.URL},
	})

	_, err := r.Invoke(context.Background(), graph.Connector{ID: "tickets-api"}, nil, nil)
	require.Error(t, err)
}

func TestInvoke_NonJSONResponseYieldsEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	r := connector.New(map[string]connector.Datasource{
		"tickets-api": {Type: "http", URL: srv.URL},
	})

	resp, err := r.Invoke(context.Background(), graph.Connector{ID: "tickets-api"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestInvoke_DefaultsToGETMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer srv.Close()

	r := connector.New(map[string]connector.Datasource{
		"tickets-api": {Type: "http", URL: srv.URL},
	})

	_, err := r.Invoke(context.Background(), graph.Connector{ID: "tickets-api"}, nil, nil)
	require.NoError(t, err)
}

func TestInvoke_ContextCancellationAborts(t *testing.T) {
	blocker := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		<-blocker
	}))
	defer srv.Close()
	defer close(blocker)

	r := connector.New(map[string]connector.Datasource{
		"tickets-api": {Type: "http", URL: srv.URL},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, graph.Connector{ID: "tickets-api"}, nil, nil)
	require.Error(t, err)
}
