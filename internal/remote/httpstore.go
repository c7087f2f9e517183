package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultCallTimeout = 10 * time.Second

// HTTPStore talks to a document-store REST API with conditional-write
// support. The backend contract:
//
//	GET  /attendance/{event_id}/{attendee_id}
//	     200 {"revision": n, "committed_at": ts, "device_id": s} | 404
//	PUT  /attendance/{event_id}/{attendee_id}  If-Match: "<revision>"
//	     200/201 committed | 409/412 conflict (body carries current record)
//
// Firestore-style backends implement the same semantics with a
// transactional compare-and-set; the engine only depends on this shape.
type HTTPStore struct {
	baseURL     *url.URL
	client      *http.Client
	callTimeout time.Duration
	apiKey      string
}

// HTTPStoreOption adjusts optional HTTPStore settings.
type HTTPStoreOption func(*HTTPStore)

// WithHTTPClient overrides the underlying client, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPStoreOption {
	return func(s *HTTPStore) {
		if client != nil {
			s.client = client
		}
	}
}

// WithCallTimeout bounds each remote call. Calls exceeding the timeout are
// classified transient.
func WithCallTimeout(timeout time.Duration) HTTPStoreOption {
	return func(s *HTTPStore) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// WithAPIKey sends the key as a bearer token on every call. Empty means
// unauthenticated.
func WithAPIKey(key string) HTTPStoreOption {
	return func(s *HTTPStore) {
		s.apiKey = key
	}
}

// NewHTTPStore builds a store client for the given base URL.
func NewHTTPStore(baseURL string, opts ...HTTPStoreOption) (*HTTPStore, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base url: %w", err)
	}
	// ResolveReference treats the last segment of a slash-less path as a
	// file and would drop it, so "/api" must become "/api/".
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	store := &HTTPStore{
		baseURL:     parsed,
		client:      &http.Client{},
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

type attendanceDocument struct {
	Revision    int64     `json:"revision"`
	CommittedAt time.Time `json:"committed_at"`
	DeviceID    string    `json:"device_id"`
}

type writeRequest struct {
	DeviceID        string    `json:"device_id"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}

// ConditionalWrite implements Store.
func (s *HTTPStore) ConditionalWrite(ctx context.Context, key Key, payload WritePayload, expectedRevision int64) (WriteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	body, err := json.Marshal(writeRequest{
		DeviceID:        payload.DeviceID,
		ClientTimestamp: payload.ClientTimestamp.UTC(),
	})
	if err != nil {
		return WriteResult{}, Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.documentURL(key), bytes.NewReader(body))
	if err != nil {
		return WriteResult{}, Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", strconv.FormatInt(expectedRevision, 10))
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return WriteResult{}, Transient(err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var doc attendanceDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			// The write reached the server but the confirmation is unreadable;
			// the resolver re-verifies with a read-back.
			return WriteResult{}, Transient(err)
		}
		return WriteResult{Outcome: WriteCommitted, Revision: doc.Revision}, nil

	case http.StatusConflict, http.StatusPreconditionFailed:
		var doc attendanceDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return WriteResult{}, Transient(err)
		}
		current := toAttendanceRecord(key, doc)
		return WriteResult{Outcome: WriteConflict, Revision: doc.Revision, Current: &current}, nil

	default:
		return WriteResult{}, classifyStatus(resp.StatusCode)
	}
}

// ReadCurrent implements Store.
func (s *HTTPStore) ReadCurrent(ctx context.Context, key Key) (AttendanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.documentURL(key), nil)
	if err != nil {
		return AttendanceRecord{}, Permanent(err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return AttendanceRecord{}, Transient(err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var doc attendanceDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return AttendanceRecord{}, Transient(err)
		}
		return toAttendanceRecord(key, doc), nil

	case http.StatusNotFound:
		return AttendanceRecord{}, ErrNotFound

	default:
		return AttendanceRecord{}, classifyStatus(resp.StatusCode)
	}
}

func (s *HTTPStore) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

func (s *HTTPStore) documentURL(key Key) string {
	ref := &url.URL{Path: "attendance/" + url.PathEscape(key.EventID) + "/" + url.PathEscape(key.AttendeeID)}
	return s.baseURL.ResolveReference(ref).String()
}

func toAttendanceRecord(key Key, doc attendanceDocument) AttendanceRecord {
	return AttendanceRecord{
		Key:         key,
		Revision:    doc.Revision,
		CommittedAt: doc.CommittedAt,
		DeviceID:    doc.DeviceID,
	}
}

// classifyStatus maps unexpected HTTP statuses to the retry taxonomy:
// server-side and throttling statuses are transient, other client errors
// (validation rejections, closed events) are permanent.
func classifyStatus(status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return Transient(err)
	}
	return Permanent(err)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
