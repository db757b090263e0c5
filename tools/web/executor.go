// Package web provides a page-fetch tool that extracts readable content and
// converts it to markdown for the planner to consume.
package web

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// maxContentSize limits fetched page bodies.
const maxContentSize = 5 * 1024 * 1024 // 5MB

// defaultUserAgent identifies the assistant to web servers.
const defaultUserAgent = "atlas-core/1.0 (+https://github.com/oleg121203/atlas-core)"

// Executor implements the web_fetch tool.
type Executor struct {
	client    *http.Client
	converter *md.Converter
}

// NewExecutor creates a web executor with SSRF-safe dialing.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	// Validate resolved IPs to prevent DNS rebinding into private networks
	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ipAddr := range ips {
			if isPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}

		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	transport := &http.Transport{
		DialContext:           safeDialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Executor{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return validateURL(req.URL)
			},
		},
		converter: converter,
	}
}

// Execute executes a web tool call.
func (e *Executor) Execute(ctx context.Context, call tools.Call) (plan.Result, error) {
	switch call.Name {
	case "web_fetch":
		return e.webFetch(ctx, call)
	default:
		return plan.Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", call.Name)},
			fmt.Errorf("unknown tool: %s", call.Name)
	}
}

// ListTools returns the tool definitions for web operations.
func (e *Executor) ListTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:        "web_fetch",
			Description: "Fetch a web page and return its readable content as markdown",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "HTTP or HTTPS URL of the page to fetch",
					},
				},
				"required": []string{"url"},
			},
		},
	}
}

func (e *Executor) webFetch(ctx context.Context, call tools.Call) (plan.Result, error) {
	rawURL, ok := call.Arguments["url"].(string)
	if !ok {
		return plan.Result{Success: false, Error: "url argument is required"}, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("invalid url: %s", err.Error())}, nil
	}
	if err := validateURL(parsed); err != nil {
		return plan.Result{Success: false, Error: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("create request: %s", err.Error())}, nil
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("fetch failed: %s", err.Error())}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return plan.Result{Success: false, Error: fmt.Sprintf("fetch failed: status %d", resp.StatusCode)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("read body: %s", err.Error())}, nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("extract content: %s", err.Error())}, nil
	}

	markdown, err := e.converter.ConvertString(article.Content)
	if err != nil {
		return plan.Result{Success: false, Error: fmt.Sprintf("convert to markdown: %s", err.Error())}, nil
	}

	title := article.Title
	if title == "" {
		title = extractHTMLTitle(body)
	}

	return plan.Result{
		Success: true,
		Data: map[string]any{
			"url":      parsed.String(),
			"title":    title,
			"markdown": markdown,
		},
		Message: fmt.Sprintf("fetched %q (%d chars of markdown)", title, len(markdown)),
	}, nil
}

// validateURL rejects non-HTTP schemes and literal private addresses.
func validateURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("requests to private IP %s are not allowed", ip)
	}
	return nil
}

// isPrivateIP reports whether the IP is loopback, link-local, or RFC1918.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified()
}
