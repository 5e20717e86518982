package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/otto-ai/otto/internal/citations"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/tools"
)

const (
	defaultFetchTimeout = 30 * time.Second

	// maxFetchBytes caps how much of a response body is read.
	maxFetchBytes = 4 << 20

	// defaultModelChars caps how much page text reaches the model.
	defaultModelChars = 8000
)

// Page is the outcome of one web fetch. The full markdown is
// display-only; the model receives a capped summary. Pages
// self-describe their source for citation extraction.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// CitationSources implements citations.Provider.
func (p Page) CitationSources() []citations.Source {
	return []citations.Source{{Kind: citations.KindWeb, Reference: p.URL, Title: p.Title}}
}

// WebFetchTool builds web_fetch: fetch a URL, decode its charset,
// convert HTML to markdown.
func WebFetchTool(client *http.Client) tools.Tool {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	schema := tools.NewSchema("web_fetch", "Fetch a web page and return its content as markdown").
		AddParam("url", "string", "absolute http(s) URL to fetch", true).
		AddParam("max_chars", "integer", "cap on the characters returned to the model", false).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		rawURL, _ := tools.StringParam(call.Params, "url")
		if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
			return tools.NewErrorResult(errors.Validation("url",
				"must start with http:// or https://")), nil
		}
		maxChars, ok := tools.IntParam(call.Params, "max_chars")
		if !ok || maxChars <= 0 {
			maxChars = defaultModelChars
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return tools.NewErrorResult(errors.Validation("url", err.Error())), nil
		}
		req.Header.Set("User-Agent", "otto-agent/1.0")

		call.ReportProgress(0, 0, "fetching "+rawURL)
		resp, err := client.Do(req)
		if err != nil {
			return tools.NewErrorResult(errors.NewBuilder(errors.CodeFetchFailed,
				"fetch failed: "+err.Error()).Temporary().Wrap(err).Build()), nil
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			fetchErr := errors.Permanent(errors.CodeFetchFailed,
				fmt.Sprintf("server returned %s for %s", resp.Status, rawURL))
			if resp.StatusCode >= 500 {
				fetchErr = errors.Temporary(errors.CodeFetchFailed,
					fmt.Sprintf("server returned %s for %s", resp.Status, rawURL))
			}
			return tools.NewErrorResult(fetchErr), nil
		}

		contentType := resp.Header.Get("Content-Type")
		decoded, err := charset.NewReader(io.LimitReader(resp.Body, maxFetchBytes), contentType)
		if err != nil {
			return tools.NewErrorResult(errors.System(errors.CodeFetchFailed,
				"charset detection failed: "+err.Error())), nil
		}
		body, err := io.ReadAll(decoded)
		if err != nil {
			return tools.NewErrorResult(errors.NewBuilder(errors.CodeFetchFailed,
				"read failed: "+err.Error()).Temporary().Wrap(err).Build()), nil
		}

		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}

		page, err := renderPage(finalURL, contentType, body)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		return tools.NewDisplayResult(page, modelSummary(page, maxChars)), nil
	})
}

// renderPage turns a decoded body into a Page. HTML gets a markdown
// conversion and a title; anything else passes through as text.
func renderPage(url, contentType string, body []byte) (Page, error) {
	if !isHTML(contentType, body) {
		return Page{URL: url, Markdown: string(body)}, nil
	}

	var title string
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	markdown, err := md.NewConverter("", true, nil).ConvertString(string(body))
	if err != nil {
		return Page{}, errors.System(errors.CodeFetchFailed,
			"markdown conversion failed: "+err.Error())
	}
	return Page{URL: url, Title: title, Markdown: markdown}, nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml") {
		return true
	}
	if contentType != "" {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// modelSummary renders the capped, model-facing slice of a page.
func modelSummary(p Page, maxChars int) string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(p.Title)
		b.WriteString("\n")
	}
	b.WriteString(p.URL)
	b.WriteString("\n\n")

	text := p.Markdown
	if len(text) > maxChars {
		text = text[:maxChars] + "\n\n[content truncated]"
	}
	b.WriteString(text)
	return b.String()
}
