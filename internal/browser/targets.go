package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
)

// ErrTargetNotFound is returned when no open tab matches Options.TargetURL.
var ErrTargetNotFound = errors.New("no open tab matches the target URL")

// pageTarget is one entry of the DevTools /json/list endpoint.
type pageTarget struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// devtoolsHTTP turns a remote URL, either the browser websocket or
// http://host:port, into the DevTools HTTP base.
func devtoolsHTTP(remote string) (string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("remote url: %w", err)
	}
	scheme := u.Scheme
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("remote url %q: unsupported scheme", remote)
	}
	if u.Host == "" {
		return "", fmt.Errorf("remote url %q: missing host", remote)
	}
	return scheme + "://" + u.Host, nil
}

// findTarget returns the first page tab whose URL contains match.
func findTarget(ctx context.Context, client *http.Client, remote, match string) (target.ID, error) {
	base, err := devtoolsHTTP(remote)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/json/list", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("list tabs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list tabs: %s", resp.Status)
	}

	var targets []pageTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("list tabs: %w", err)
	}
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, match) {
			return target.ID(t.ID), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrTargetNotFound, match)
}

func attachTarget(remote, match string) (target.ID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return findTarget(ctx, http.DefaultClient, remote, match)
}
