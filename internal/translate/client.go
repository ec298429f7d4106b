// Package translate fetches the accepted translations for quiz words from
// an external HTTP service and wraps the lookups as cancellable tasks on a
// bounded worker pool.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Client queries the translation service. Results are cached with a TTL so
// that a word appearing in several matches costs one network round trip.
type Client struct {
	httpClient *http.Client
	endpoint   string
	langPair   string
	cache      *gocache.Cache
}

// NewClient returns a Client for the service at endpoint translating words
// across langPair (e.g. "it|en").
func NewClient(endpoint, langPair string, requestTimeout, cacheTTL time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoint:   endpoint,
		langPair:   langPair,
		cache:      gocache.New(cacheTTL, 10*time.Minute),
	}
}

// lookupResponse mirrors the service's JSON payload. The primary
// translation is returned in responseData and alternates under matches.
type lookupResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus int `json:"responseStatus"`
	Matches        []struct {
		Translation string `json:"translation"`
	} `json:"matches"`
}

// Lookup returns the set of accepted translations for word. Failures are
// returned as errors and never as an empty translation set; a word the
// service cannot translate makes its challenge unplayable and the caller
// must treat that as fatal for the match.
func (c *Client) Lookup(ctx context.Context, word string) ([]string, error) {
	if cached, ok := c.cache.Get(word); ok {
		return cached.([]string), nil
	}

	query := url.Values{}
	query.Set("q", word)
	query.Set("langpair", c.langPair)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translation service returned status %d", resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed translation response: %w", err)
	}
	if payload.ResponseStatus != 0 && payload.ResponseStatus != http.StatusOK {
		return nil, fmt.Errorf("translation service error status %d", payload.ResponseStatus)
	}

	translations := collectTranslations(&payload)
	if len(translations) == 0 {
		return nil, fmt.Errorf("no translations available for %q", word)
	}

	c.cache.SetDefault(word, translations)
	return translations, nil
}

func collectTranslations(payload *lookupResponse) []string {
	seen := make(map[string]bool)
	var translations []string

	add := func(translation string) {
		if translation != "" && !seen[translation] {
			seen[translation] = true
			translations = append(translations, translation)
		}
	}

	add(payload.ResponseData.TranslatedText)
	for _, match := range payload.Matches {
		add(match.Translation)
	}
	return translations
}
