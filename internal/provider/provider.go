// Package provider holds the four read-only lookups behind the dashboard.
// Each provider turns any failure into its section's error record, so a
// caller always gets a value it can render.
package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Reason classifies why a lookup failed.
type Reason string

const (
	ReasonNetwork            Reason = "network"
	ReasonParse              Reason = "parse"
	ReasonUnexpectedResponse Reason = "unexpected_response"
	ReasonQueryFailure       Reason = "query_failure"
	ReasonCollection         Reason = "collection"
)

type FetchError struct {
	Reason Reason
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fail(reason Reason, err error) *FetchError {
	return &FetchError{Reason: reason, Err: err}
}

// ReasonOf returns the failure reason carried by err, or "" if there is none.
func ReasonOf(err error) Reason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// maxBodyBytes bounds how much of an upstream body is read.
const maxBodyBytes = 1 << 20

// readBody returns the body of a 2xx response. Transport errors and non-2xx
// statuses are both network failures.
func readBody(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(ReasonNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(ReasonNetwork, fmt.Errorf("%s returned %s", req.URL.Path, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(ReasonNetwork, err)
	}
	return body, nil
}
