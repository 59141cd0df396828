package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultSerperURL is the Serper web search endpoint.
const DefaultSerperURL = "https://google.serper.dev/search"

// SearchOptions configures the web search tool.
type SearchOptions struct {
	// APIURL overrides the Serper endpoint (useful for tests).
	APIURL string
	// Timeout bounds a single search request.
	Timeout time.Duration
	// MaxResults limits how many organic results are rendered.
	MaxResults int
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

type searchArgs struct {
	Query string `json:"query" mapstructure:"query" description:"The search query"`
}

type serperResponse struct {
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// NewWebSearchTool creates the web_search tool backed by the Serper REST API.
func NewWebSearchTool(apiKey string, optFns ...func(o *SearchOptions)) Tool {
	opts := SearchOptions{
		APIURL:     DefaultSerperURL,
		Timeout:    15 * time.Second,
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return NewFunctionToolFromStruct(
		"web_search",
		"Use this tool when you want to get the results of an online web search",
		searchArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in searchArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			payload, err := json.Marshal(map[string]string{"q": in.Query})
			if err != nil {
				return "", err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.APIURL, bytes.NewReader(payload))
			if err != nil {
				return "", err
			}
			req.Header.Set("X-API-KEY", apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("search request: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return "", fmt.Errorf("search request failed: status %d: %s", resp.StatusCode, string(body))
			}

			var result serperResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return "", fmt.Errorf("decode search response: %w", err)
			}

			return renderSearchResults(result, opts.MaxResults), nil
		},
	)
}

func renderSearchResults(result serperResponse, maxResults int) string {
	var sb strings.Builder

	if result.AnswerBox.Answer != "" {
		sb.WriteString(result.AnswerBox.Answer)
	} else if result.AnswerBox.Snippet != "" {
		sb.WriteString(result.AnswerBox.Snippet)
	}

	count := 0
	for _, item := range result.Organic {
		if count >= maxResults {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(item.Title)
		if item.Snippet != "" {
			sb.WriteString("\n")
			sb.WriteString(item.Snippet)
		}
		if item.Link != "" {
			sb.WriteString("\n")
			sb.WriteString(item.Link)
		}
		count++
	}

	if sb.Len() == 0 {
		return "No results found."
	}
	return sb.String()
}
