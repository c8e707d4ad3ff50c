// Package connector implements the HTTP connector runner a serviceTask,
// sendTask, or businessRule delegates to once its connector id resolves
// against a configured datasource (spec §4.4).
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// connectTimeout bounds only the TCP+TLS handshake phase; once a connection
// is established there is no read-phase timeout (spec §4.4).
const connectTimeout = 5 * time.Second

// Datasource is one entry of the process-wide `DS` configuration: a named
// connector id resolving to an HTTP base url (spec §6).
type Datasource struct {
	Type string
	URL  string
}

// Runner invokes connectors against a fixed set of datasources, resolved
// once at startup and never mutated (spec §6 "loaded once at startup").
type Runner struct {
	datasources map[string]Datasource
	client      *http.Client
}

// New builds a Runner over datasources, keyed by connector id.
func New(datasources map[string]Datasource) *Runner {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}
	return &Runner{
		datasources: datasources,
		client:      &http.Client{Transport: transport},
	}
}

// Invoke resolves conn.ID against the configured datasources. An
// unresolved id yields (nil, nil): the caller treats this as "succeed with
// no side effect" (spec §4.3 step 3). A resolved id performs the HTTP call
// described by conn, merging params into the query string and body as the
// JSON request payload.
func (r *Runner) Invoke(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error) {
	ds, ok := r.datasources[conn.ID]
	if !ok {
		return nil, nil
	}

	method := strings.ToUpper(conn.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := joinURL(ds.URL, conn.URL)
	if err != nil {
		return nil, errors.ConnectorError(conn.ID, 0, err.Error())
	}

	q := target.Query()
	for k, v := range conn.URLParams {
		q.Set(k, v)
	}
	for k, v := range params {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	target.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.ConnectorError(conn.ID, 0, err.Error())
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, errors.ConnectorError(conn.ID, 0, err.Error())
	}
	req.Header.Set("content-type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ConnectorError(conn.ID, 0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectorError(conn.ID, resp.StatusCode, err.Error())
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.ConnectorError(conn.ID, resp.StatusCode, string(respBody))
	}

	var parsed map[string]interface{}
	if len(respBody) == 0 {
		return map[string]interface{}{}, nil
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return map[string]interface{}{}, nil
	}
	return parsed, nil
}

func joinURL(base, path string) (*url.URL, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if path == "" {
		return baseURL, nil
	}
	refURL, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid connector url: %w", err)
	}
	return baseURL.ResolveReference(refURL), nil
}
