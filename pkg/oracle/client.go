package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/wardenhq/warden/pkg/models"
)

// ErrUnavailable indicates the oracle could not be reached or answered with
// a server error. Callers fall back to the cached verdict within its TTL.
var ErrUnavailable = errors.New("oracle unavailable")

// Freshness describes where a verdict came from.
type Freshness int

const (
	// Fresh — fetched live from the oracle on this call.
	Fresh Freshness = iota
	// Cached — oracle unreachable, prior verdict still within TTL.
	Cached
	// Stale — oracle unreachable and the prior verdict's TTL has passed.
	// Read surfaces report it with a stale flag; enforcement must not
	// issue new logouts on it.
	Stale
)

// Client queries the oracle's check endpoint and caches verdicts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *verdictCache
	logger     *slog.Logger
}

// NewClient creates an oracle client. ttl bounds how long a cached verdict
// is treated as current when the oracle is unreachable.
func NewClient(baseURL string, ttl time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		cache:      newVerdictCache(ttl),
		logger:     slog.Default().With("component", "oracle-client"),
	}
}

// checkResponse is the oracle's wire shape for a verdict.
type checkResponse struct {
	Allowed          bool   `json:"allowed"`
	Banned           bool   `json:"banned"`
	RemainingSeconds int    `json:"remaining_seconds"`
	AsOf             string `json:"as_of,omitempty"`
}

// Check queries the oracle for a (child, activity) verdict. The request is
// non-mutating (check_only). Transport and 5xx failures return
// ErrUnavailable; the fetched verdict is cached on success.
func (c *Client) Check(ctx context.Context, childID string, activity models.ActivityKind) (models.OracleVerdict, error) {
	q := url.Values{}
	q.Set("child_id", childID)
	q.Set("activity", string(activity))
	q.Set("check_only", "true")
	checkURL := c.baseURL + "/api/v1/check?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return models.OracleVerdict{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.OracleVerdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.OracleVerdict{}, fmt.Errorf("%w: oracle returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.OracleVerdict{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	verdict := models.OracleVerdict{
		ChildID:          childID,
		Activity:         activity,
		Allowed:          body.Allowed,
		Banned:           body.Banned,
		RemainingSeconds: body.RemainingSeconds,
		AsOf:             time.Now(),
	}
	if body.AsOf != "" {
		if t, err := time.Parse(time.RFC3339, body.AsOf); err == nil {
			verdict.AsOf = t
		}
	}

	c.cache.set(verdict)
	return verdict, nil
}

// CheckCached queries the oracle, falling back to the cached verdict when it
// is unreachable. The Freshness return tells the caller whether the verdict
// is live, cached-but-current, or stale. An error is returned only when the
// oracle is unreachable and no prior verdict exists at all.
func (c *Client) CheckCached(ctx context.Context, childID string, activity models.ActivityKind) (models.OracleVerdict, Freshness, error) {
	verdict, err := c.Check(ctx, childID, activity)
	if err == nil {
		return verdict, Fresh, nil
	}

	prior, current, present := c.cache.get(childID, activity)
	if !present {
		return models.OracleVerdict{}, Stale, err
	}

	if current {
		c.logger.Warn("Oracle unreachable, using cached verdict",
			"child_id", childID, "activity", activity, "error", err)
		return prior, Cached, nil
	}

	c.logger.Warn("Oracle unreachable and cached verdict is stale",
		"child_id", childID, "activity", activity, "error", err)
	return prior, Stale, nil
}

// Invalidate drops cached verdicts for a child. Called when the oracle
// pushes a stateChange for that child.
func (c *Client) Invalidate(childID string) {
	c.cache.invalidate(childID)
}
