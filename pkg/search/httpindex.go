package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/heather/pkg/tracing"
	"github.com/jmespath/go-jmespath"
)

const (
	// MaxResponseSize bounds the index response body (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	DefaultIDPath    = "response.docs[].id"
	DefaultTotalPath = "response.numFound"
)

type HTTPIndexConfig struct {
	BaseURL string
	// IDPath and TotalPath are JMESPath expressions evaluated against the JSON response.
	IDPath    string
	TotalPath string
	Timeout   time.Duration
}

// HTTPIndex queries a Solr-style select endpoint: {BaseURL}/{index}/select.
type HTTPIndex struct {
	client    *http.Client
	config    HTTPIndexConfig
	idPath    *jmespath.JMESPath
	totalPath *jmespath.JMESPath
	logger    ectologger.Logger
}

func NewHTTPIndex(config HTTPIndexConfig, logger ectologger.Logger) (*HTTPIndex, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("index base url is required")
	}
	if config.IDPath == "" {
		config.IDPath = DefaultIDPath
	}
	if config.TotalPath == "" {
		config.TotalPath = DefaultTotalPath
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	idPath, err := jmespath.Compile(config.IDPath)
	if err != nil {
		return nil, fmt.Errorf("invalid id path %q: %w", config.IDPath, err)
	}
	totalPath, err := jmespath.Compile(config.TotalPath)
	if err != nil {
		return nil, fmt.Errorf("invalid total path %q: %w", config.TotalPath, err)
	}

	return &HTTPIndex{
		client:    &http.Client{Timeout: config.Timeout},
		config:    config,
		idPath:    idPath,
		totalPath: totalPath,
		logger:    logger,
	}, nil
}

func (i *HTTPIndex) Query(ctx context.Context, query Query) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "search.HTTPIndex.Query")
	defer span.End()

	params := url.Values{}
	params.Set("q", RenderText(query.Text, query.Match))
	for _, filter := range query.Filters {
		params.Add("fq", RenderFilter(filter))
	}
	params.Set("rows", strconv.Itoa(query.MaxResults))
	params.Set("fl", "id")
	params.Set("wt", "json")

	body, err := i.get(ctx, query.IndexName, params)
	if err != nil {
		return Result{}, err
	}

	i.logger.WithContext(ctx).Debugf("index %s %q -> %d bytes", query.IndexName, query.Text, len(body))

	return i.parse(body)
}

// Ping runs a zero-row match-all query to check the index is up and indexName exists.
func (i *HTTPIndex) Ping(ctx context.Context, indexName string) error {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("rows", "0")
	params.Set("wt", "json")

	body, err := i.get(ctx, indexName, params)
	if err != nil {
		return err
	}
	_, err = i.parse(body)
	return err
}

func (i *HTTPIndex) get(ctx context.Context, indexName string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/select?%s", strings.TrimRight(i.config.BaseURL, "/"), url.PathEscape(indexName), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read index response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("index response too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("index returned status %d", resp.StatusCode)
	}
	return body, nil
}

func (i *HTTPIndex) parse(body []byte) (Result, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return Result{}, fmt.Errorf("invalid index response: %w", err)
	}

	rawIDs, err := i.idPath.Search(data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract ids: %w", err)
	}

	var ids []string
	switch values := rawIDs.(type) {
	case nil:
	case []any:
		ids = make([]string, 0, len(values))
		for _, v := range values {
			ids = append(ids, formatID(v))
		}
	default:
		return Result{}, fmt.Errorf("id path %q did not yield a list", i.config.IDPath)
	}

	rawTotal, err := i.totalPath.Search(data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract total: %w", err)
	}

	total := len(ids)
	if n, ok := rawTotal.(float64); ok {
		total = int(n)
	}

	return Result{IDs: ids, Total: total}, nil
}

func formatID(v any) string {
	if n, ok := v.(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
