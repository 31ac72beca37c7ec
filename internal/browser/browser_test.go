package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelTabs_URLFor(t *testing.T) {
	tabs := NewPanelTabs(NewSession(Options{}), "http://127.0.0.1:8765/panel?theme=dark")
	got, err := tabs.urlFor(12)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8765/panel?theme=dark&window=12", got)
}

func TestPanelTabs_OpenWhileDisabled(t *testing.T) {
	tabs := NewPanelTabs(NewSession(Options{}), "http://127.0.0.1:8765/panel")
	closed := 0
	tabs.tabs[3] = func() { closed++ }

	require.NoError(t, tabs.SetEnabled(context.Background(), false))
	assert.Equal(t, 1, closed)
	assert.Empty(t, tabs.tabs)
	assert.ErrorIs(t, tabs.Open(context.Background(), 3), ErrPanelsDisabled)
}

func TestScripts_QuoteArguments(t *testing.T) {
	sel := `textarea[placeholder="输入'步骤'"]`
	script := fmt.Sprintf(queryScript, jsString(""), jsString(sel))
	assert.Contains(t, script, `(function(root, sel)`)
	assert.True(t, strings.HasSuffix(script, `})("", "textarea[placeholder=\"输入'步骤'\"]")`))

	script = fmt.Sprintf(elementScript, opSetValue, jsString("7"), jsString("a\nb"))
	assert.Contains(t, script, `})("7", "a\nb")`)
	assert.NotContains(t, script, "%!")
}

func TestDevtoolsHTTP(t *testing.T) {
	tests := map[string]string{
		"ws://127.0.0.1:9222/devtools/browser/abc": "http://127.0.0.1:9222",
		"wss://chrome.internal/devtools/browser/x": "https://chrome.internal",
		"http://localhost:9222":                    "http://localhost:9222",
	}
	for in, want := range tests {
		got, err := devtoolsHTTP(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := devtoolsHTTP("ftp://host")
	assert.Error(t, err)
	_, err = devtoolsHTTP("ws:///no-host")
	assert.Error(t, err)
}

func TestFindTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/list" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[
			{"id": "W1", "type": "service_worker", "url": "https://cases.example/testcase/edit/7"},
			{"id": "P1", "type": "page", "url": "https://cases.example/home"},
			{"id": "P2", "type": "page", "url": "https://cases.example/testcase/edit/7"}
		]`)
	}))
	defer srv.Close()

	remote := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/devtools/browser/abc"
	ctx := context.Background()

	id, err := findTarget(ctx, srv.Client(), remote, "/testcase/edit")
	require.NoError(t, err)
	assert.Equal(t, "P2", string(id))

	_, err = findTarget(ctx, srv.Client(), remote, "/nowhere")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}
