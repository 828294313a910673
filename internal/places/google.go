package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/telemetry"
)

const (
	DefaultPlacesBaseURL     = "https://maps.googleapis.com/maps/api"
	DefaultValidationBaseURL = "https://addressvalidation.googleapis.com"

	// MAX_ATTEMPTS 같은 요청의 최대 시도 횟수
	MAX_ATTEMPTS = 3
	// INITIAL_BACKOFF 첫 백오프(초)
	INITIAL_BACKOFF = 0.4
	// BACKOFF_FACTOR 지수 백오프 계수
	BACKOFF_FACTOR = 1.7
	// MAX_BACKOFF 한 번 대기할 때 최대 시간(초)
	MAX_BACKOFF = 6.0
)

var ErrNoAPIKey = errors.New("google maps api key is not configured")

// StatusError is a non-OK answer from Google, either an HTTP status or an
// API-level status string on a 200 response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("google %s: status=%s http=%d %s", e.Endpoint, e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("google %s: http=%d %s", e.Endpoint, e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GoogleClient talks to Places Autocomplete, Text Search, Place Details and
// the Address Validation API. Calls are rate limited, retried with backoff
// and guarded by a circuit breaker.
type GoogleClient struct {
	apiKey            string
	region            string
	language          string
	placesBaseURL     string
	validationBaseURL string
	maxResults        int

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*GoogleClient)

// WithBaseURLs points the client at other hosts (tests, proxies).
func WithBaseURLs(placesURL, validationURL string) Option {
	return func(c *GoogleClient) {
		c.placesBaseURL = strings.TrimRight(placesURL, "/")
		c.validationBaseURL = strings.TrimRight(validationURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *GoogleClient) { c.httpClient = hc }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *GoogleClient) { c.sleep = fn }
}

func NewGoogleClient(cfg config.GoogleConfig, breakerCfg config.BreakerConfig, maxResults int, opts ...Option) *GoogleClient {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	region := strings.ToLower(cfg.Region)
	if region == "" {
		region = "au"
	}

	c := &GoogleClient{
		apiKey:            cfg.APIKey,
		region:            region,
		language:          cfg.Language,
		placesBaseURL:     DefaultPlacesBaseURL,
		validationBaseURL: DefaultValidationBaseURL,
		maxResults:        maxResults,
		httpClient:        &http.Client{Timeout: timeout},
		limiter:           rate.NewLimiter(limit, burst),
		sleep:             sleepContext,
	}
	c.breaker = newBreaker("google-maps", breakerCfg)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	maxFailures := uint32(5)
	if cfg.MaxFailures > 0 {
		maxFailures = uint32(cfg.MaxFailures)
	}
	log := logger.GetLogger("places.breaker")
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// GetPlaceSuggestions runs an autocomplete search, or a text search when
// req.Autocomplete is false (the strict lookup used for full addresses).
func (c *GoogleClient) GetPlaceSuggestions(ctx context.Context, req SuggestionRequest) ([]Candidate, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = c.maxResults
	}

	var candidates []Candidate
	var err error
	if req.Autocomplete {
		candidates, err = c.autocomplete(ctx, query, req)
	} else {
		candidates, err = c.textSearch(ctx, query, req)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

type autocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID              string   `json:"place_id"`
		Description          string   `json:"description"`
		Types                []string `json:"types"`
		StructuredFormatting struct {
			MainText      string `json:"main_text"`
			SecondaryText string `json:"secondary_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

func (r *autocompleteResponse) apiStatus() (string, string) { return r.Status, r.ErrorMessage }

func (c *GoogleClient) autocomplete(ctx context.Context, query string, req SuggestionRequest) ([]Candidate, error) {
	params := url.Values{}
	params.Set("input", query)
	params.Set("components", "country:"+c.region)
	if c.language != "" {
		params.Set("language", c.language)
	}
	if t := autocompleteTypes(req.Intent); t != "" {
		params.Set("types", t)
	}
	if req.SessionToken != "" {
		params.Set("sessiontoken", req.SessionToken)
	}

	var resp autocompleteResponse
	if err := c.getJSON(ctx, "autocomplete", c.placesBaseURL+"/place/autocomplete/json", params, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Predictions))
	for i, p := range resp.Predictions {
		resultType := intent.ClassifyResult(p.Types, p.Description)
		cand := Candidate{
			PlaceID:     p.PlaceID,
			Description: p.Description,
			Types:       slices.Clone(p.Types),
			Confidence:  Float(Confidence(req.Intent, resultType, i)),
			ResultType:  resultType.String(),
		}
		if resultType == intent.Suburb {
			cand.Suburb = p.StructuredFormatting.MainText
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

type geometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

type textSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
		Geometry         geometry `json:"geometry"`
	} `json:"results"`
}

func (r *textSearchResponse) apiStatus() (string, string) { return r.Status, r.ErrorMessage }

func (c *GoogleClient) textSearch(ctx context.Context, query string, req SuggestionRequest) ([]Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("region", c.region)
	if c.language != "" {
		params.Set("language", c.language)
	}

	var resp textSearchResponse
	if err := c.getJSON(ctx, "textsearch", c.placesBaseURL+"/place/textsearch/json", params, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Results))
	for i, r := range resp.Results {
		description := r.FormattedAddress
		if description == "" {
			description = r.Name
		}
		resultType := intent.ClassifyResult(r.Types, description)
		candidates = append(candidates, Candidate{
			PlaceID:     r.PlaceID,
			Description: description,
			Types:       slices.Clone(r.Types),
			Confidence:  Float(Confidence(req.Intent, resultType, i)),
			Lat:         Float(r.Geometry.Location.Lat),
			Lng:         Float(r.Geometry.Location.Lng),
			ResultType:  resultType.String(),
		})
	}
	return candidates, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		PlaceID           string   `json:"place_id"`
		FormattedAddress  string   `json:"formatted_address"`
		Types             []string `json:"types"`
		Geometry          geometry `json:"geometry"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"result"`
}

func (r *detailsResponse) apiStatus() (string, string) { return r.Status, r.ErrorMessage }

func (c *GoogleClient) GetPlaceDetails(ctx context.Context, placeID string) (*Details, error) {
	if placeID == "" {
		return nil, errors.New("place id is required")
	}
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "place_id,formatted_address,geometry,address_components,types")
	if c.language != "" {
		params.Set("language", c.language)
	}

	var resp detailsResponse
	if err := c.getJSON(ctx, "details", c.placesBaseURL+"/place/details/json", params, &resp); err != nil {
		return nil, err
	}

	r := resp.Result
	d := &Details{
		PlaceID:          r.PlaceID,
		FormattedAddress: r.FormattedAddress,
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		Types:            slices.Clone(r.Types),
	}
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	for _, comp := range r.AddressComponents {
		switch {
		case slices.Contains(comp.Types, "locality"):
			d.Suburb = comp.LongName
		case slices.Contains(comp.Types, "postal_code"):
			d.Postcode = comp.LongName
		case slices.Contains(comp.Types, "administrative_area_level_1"):
			d.State = comp.ShortName
		}
	}
	return d, nil
}

type validationRequest struct {
	Address struct {
		RegionCode   string   `json:"regionCode"`
		AddressLines []string `json:"addressLines"`
	} `json:"address"`
}

type validationResponse struct {
	Result struct {
		Verdict struct {
			InputGranularity         string `json:"inputGranularity"`
			ValidationGranularity    string `json:"validationGranularity"`
			GeocodeGranularity       string `json:"geocodeGranularity"`
			AddressComplete          bool   `json:"addressComplete"`
			HasUnconfirmedComponents bool   `json:"hasUnconfirmedComponents"`
		} `json:"verdict"`
		Address struct {
			FormattedAddress  string `json:"formattedAddress"`
			AddressComponents []struct {
				ComponentType     string `json:"componentType"`
				ConfirmationLevel string `json:"confirmationLevel"`
			} `json:"addressComponents"`
		} `json:"address"`
		Geocode struct {
			Location struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"location"`
			PlaceID    string   `json:"placeId"`
			PlaceTypes []string `json:"placeTypes"`
		} `json:"geocode"`
	} `json:"result"`
}

var leadingNumberRe = regexp.MustCompile(`^\s*(?:(?:unit|u|lot)\s*)?\d`)

// ValidateAddress calls the Address Validation API. A transport or API
// failure is returned as an error; a rejected address is a Validation with
// Error set.
func (c *GoogleClient) ValidateAddress(ctx context.Context, address string) (*Validation, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return &Validation{Error: "address is empty"}, nil
	}

	var body validationRequest
	body.Address.RegionCode = strings.ToUpper(c.region)
	body.Address.AddressLines = []string{address}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("validation request JSON 생성 실패: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	endpoint := c.validationBaseURL + "/v1:validateAddress?" + params.Encode()

	var resp validationResponse
	err = c.do(ctx, "validation", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	return interpretValidation(address, &resp), nil
}

func interpretValidation(input string, resp *validationResponse) *Validation {
	r := resp.Result
	v := &Validation{
		FormattedAddress: r.Address.FormattedAddress,
		PlaceID:          r.Geocode.PlaceID,
		Types:            slices.Clone(r.Geocode.PlaceTypes),
		Granularity:      r.Verdict.ValidationGranularity,
	}
	if loc := r.Geocode.Location; loc.Latitude != 0 || loc.Longitude != 0 {
		v.Lat = Float(loc.Latitude)
		v.Lng = Float(loc.Longitude)
	}

	switch v.Granularity {
	case "PREMISE", "SUB_PREMISE":
		v.IsValid = true
	case "PREMISE_PROXIMITY", "BLOCK", "ROUTE":
		// 번지까지는 확인 못 했지만 번지가 있는 입력: 농촌 주소일 가능성
		hasStreetNumber := leadingNumberRe.MatchString(strings.ToLower(input))
		for _, comp := range r.Address.AddressComponents {
			if comp.ComponentType == "street_number" {
				hasStreetNumber = true
			}
		}
		if hasStreetNumber {
			v.IsRuralException = true
		} else {
			v.Error = "The address could only be confirmed to street level."
		}
	default:
		v.Error = "The provided address could not be validated."
	}
	return v
}

type apiStatusReporter interface {
	apiStatus() (status, message string)
}

func (c *GoogleClient) getJSON(ctx context.Context, endpoint, baseURL string, params url.Values, out apiStatusReporter) error {
	params.Set("key", c.apiKey)
	fullURL := baseURL + "?" + params.Encode()
	return c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	}, out)
}

// do runs one logical request: rate limit, breaker, retry with backoff.
func (c *GoogleClient) do(ctx context.Context, endpoint string, build func(ctx context.Context) (*http.Request, error), out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	ctx, span := telemetry.StartSpan(ctx, "google."+endpoint, attribute.String("google.endpoint", endpoint))
	defer span.End()

	log := logger.GetLogger("places.google")
	start := time.Now()
	defer func() {
		googleRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	backoff := INITIAL_BACKOFF
	var lastErr error
	for attempt := 1; attempt <= MAX_ATTEMPTS; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.once(ctx, endpoint, build, out)
		})
		if err == nil {
			googleRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
			span.SetAttributes(attribute.Int("google.attempts", attempt))
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == MAX_ATTEMPTS {
			break
		}
		wait := math.Min(MAX_BACKOFF, backoff) + rand.Float64()*0.3
		log.Warnf("Google %s 실패: %v. %.2fs 후 재시도 (%d/%d)", endpoint, err, wait, attempt, MAX_ATTEMPTS)
		if err := c.sleep(ctx, time.Duration(wait*float64(time.Second))); err != nil {
			lastErr = err
			break
		}
		backoff *= BACKOFF_FACTOR
	}

	googleRequestsTotal.WithLabelValues(endpoint, outcome(lastErr)).Inc()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

func (c *GoogleClient) once(ctx context.Context, endpoint string, build func(ctx context.Context) (*http.Request, error), out any) error {
	req, err := build(ctx)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	if r, ok := out.(apiStatusReporter); ok {
		status, message := r.apiStatus()
		if status != "" && status != "OK" && status != "ZERO_RESULTS" {
			return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Status: status, Message: message}
		}
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// 네트워크 오류는 재시도
	return true
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &se):
		if se.Status != "" {
			return strings.ToLower(se.Status)
		}
		return fmt.Sprintf("http_%d", se.StatusCode)
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// autocompleteTypes maps the search intent to the autocomplete "types" filter.
func autocompleteTypes(i intent.Intent) string {
	switch i {
	case intent.Address, intent.Street:
		return "address"
	case intent.Suburb:
		return "(regions)"
	default:
		return ""
	}
}

// Confidence scores a result by how well its type matches the requested
// intent, dropping a little per position in the provider's ranking.
func Confidence(requested, got intent.Intent, position int) float64 {
	base := 0.6
	switch {
	case requested == got:
		base = 0.9
	case requested == intent.General:
		base = 0.75
	}
	s := base - 0.05*float64(position)
	s = math.Max(0.1, math.Min(1, s))
	return math.Round(s*100) / 100
}
