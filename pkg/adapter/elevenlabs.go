package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/harukit/echosync/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultBaseURL is the production endpoint of the ElevenLabs API
const DefaultBaseURL = "https://api.elevenlabs.io"

// HistoryClient is the interface for the remote history API. It is
// stateless across calls except for connection reuse.
type HistoryClient interface {
	// FetchPage requests one page of history starting after cursor.
	// An empty cursor requests the first page.
	FetchPage(ctx context.Context, cursor string, pageSize int) (*model.Page, error)
	// FetchArtifact streams the audio artifact for the given reference.
	// The caller must close the returned reader.
	FetchArtifact(ctx context.Context, ref string) (io.ReadCloser, error)
}

// elevenLabs implements HistoryClient against the ElevenLabs v1 API
type elevenLabs struct {
	baseURL        string
	apiKey         string
	pageClient     *http.Client
	artifactClient *http.Client
}

// NewElevenLabs creates a new ElevenLabs history client. Artifact
// downloads get their own timeout since audio payloads are streamed
// and can be much larger than a metadata page.
func NewElevenLabs(baseURL, apiKey string, requestTimeout, artifactTimeout time.Duration) HistoryClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &elevenLabs{
		baseURL: baseURL,
		apiKey:  apiKey,
		pageClient: &http.Client{
			Timeout: requestTimeout,
		},
		artifactClient: &http.Client{
			Timeout: artifactTimeout,
		},
	}
}

// historyEnvelope is the wire shape of GET /v1/history
type historyEnvelope struct {
	History    []json.RawMessage `json:"history"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// historyItemEnvelope is the subset of item fields the mirror needs;
// the raw object is kept alongside for archival.
type historyItemEnvelope struct {
	HistoryItemID string `json:"history_item_id"`
	DateUnix      int64  `json:"date_unix"`
	VoiceID       string `json:"voice_id"`
	VoiceName     string `json:"voice_name"`
	Text          string `json:"text"`
}

func (x *elevenLabs) FetchPage(ctx context.Context, cursor string, pageSize int) (*model.Page, error) {
	endpoint := x.baseURL + "/v1/history"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create history request")
	}

	q := url.Values{}
	q.Set("page_size", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("xi-api-key", x.apiKey)

	resp, err := x.pageClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch history page", goerr.T(TagTransient))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "history page request failed")
	}

	var envelope historyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, goerr.Wrap(err, "undecodable history response", goerr.T(TagMalformed))
	}

	page := &model.Page{
		NextCursor: envelope.NextCursor,
		HasMore:    envelope.HasMore,
	}
	for _, raw := range envelope.History {
		item, err := parseHistoryItem(raw)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, item)
	}

	return page, nil
}

func (x *elevenLabs) FetchArtifact(ctx context.Context, ref string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/v1/history/%s/audio", x.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact request")
	}
	req.Header.Set("xi-api-key", x.apiKey)

	resp, err := x.artifactClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch artifact", goerr.T(TagTransient), goerr.V("ref", ref))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyStatus(resp, "artifact request failed", goerr.V("ref", ref))
	}

	return &artifactBody{ReadCloser: resp.Body, ref: ref}, nil
}

// artifactBody tags read failures on the streamed artifact as
// transient. A connection drop mid-download counts against the retry
// budget like any other network failure, instead of surfacing from
// the consumer's copy loop as an unclassified error.
type artifactBody struct {
	io.ReadCloser
	ref string
}

func (x *artifactBody) Read(p []byte) (int, error) {
	n, err := x.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, goerr.Wrap(err, "artifact stream interrupted",
			goerr.T(TagTransient), goerr.V("ref", x.ref))
	}
	return n, err
}

// parseHistoryItem validates the fields the mirror depends on. An item
// without an ID or timestamp violates the API contract and is fatal
// for the page rather than guessed at.
func parseHistoryItem(raw json.RawMessage) (*model.HistoryItem, error) {
	var envelope historyItemEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, goerr.Wrap(err, "undecodable history item", goerr.T(TagMalformed))
	}
	if envelope.HistoryItemID == "" {
		return nil, goerr.New("history item without id", goerr.T(TagMalformed))
	}
	if envelope.DateUnix <= 0 {
		return nil, goerr.New("history item without timestamp",
			goerr.T(TagMalformed), goerr.V("id", envelope.HistoryItemID))
	}

	return &model.HistoryItem{
		ID:        model.ItemID(envelope.HistoryItemID),
		Time:      time.Unix(envelope.DateUnix, 0).UTC(),
		VoiceID:   envelope.VoiceID,
		VoiceName: envelope.VoiceName,
		Text:      envelope.Text,
		Raw:       raw,
	}, nil
}

// classifyStatus maps a non-200 response to a tagged error
func classifyStatus(resp *http.Response, msg string, options ...goerr.Option) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	options = append(options,
		goerr.V("status", resp.StatusCode),
		goerr.V("body", string(body)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		options = append(options, goerr.T(TagUnauthorized))
	case resp.StatusCode == http.StatusTooManyRequests:
		options = append(options, goerr.T(TagRateLimited))
		if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
			options = append(options, goerr.V(retryAfterKey, hint))
		}
	default:
		options = append(options, goerr.T(TagTransient))
	}

	return goerr.New(msg, options...)
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
