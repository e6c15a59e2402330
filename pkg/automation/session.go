package automation

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

const (
	defaultActionTimeout = 30 * time.Second
	maxSnapshotChars     = 20000
)

func blankTarget() proto.TargetCreateTarget {
	return proto.TargetCreateTarget{URL: "about:blank"}
}

// rodSession is a Session backed by a shared rod browser. Each session owns
// its own set of pages; closing the session closes only those pages, never
// the browser.
type rodSession struct {
	factory *RodFactory
	browser *rod.Browser

	mu          sync.Mutex
	pages       map[string]*rod.Page
	current     string
	artifactDir string
	closed      bool
}

func newRodSession(f *RodFactory, browser *rod.Browser, page *rod.Page, artifactDir string) *rodSession {
	id := string(page.TargetID)
	return &rodSession{
		factory:     f,
		browser:     browser,
		pages:       map[string]*rod.Page{id: page},
		current:     id,
		artifactDir: artifactDir,
	}
}

type toolHandler func(s *rodSession, ctx context.Context, params map[string]interface{}) (*ToolResult, error)

// toolHandlers is the closed set of tools a session can execute. Adding a
// tool means adding both a catalog entry and a handler here.
var toolHandlers = map[string]toolHandler{
	"browser_navigate":        (*rodSession).navigate,
	"browser_snapshot":        (*rodSession).snapshot,
	"browser_click":           (*rodSession).click,
	"browser_type":            (*rodSession).typeText,
	"browser_wait_for":        (*rodSession).waitFor,
	"browser_take_screenshot": (*rodSession).takeScreenshot,
	"browser_tab_new":         (*rodSession).tabNew,
	"browser_tab_close":       (*rodSession).tabClose,
	"browser_close":           (*rodSession).closeTool,
}

// HandledTools lists the tool names a rod session can execute.
func HandledTools() []string {
	names := make([]string, 0, len(toolHandlers))
	for name := range toolHandlers {
		names = append(names, name)
	}
	return names
}

func (s *rodSession) Invoke(ctx context.Context, tool string, params map[string]interface{}) (*ToolResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	handler, ok := toolHandlers[tool]
	if !ok {
		return nil, &ToolError{
			Code:    CodeUnknownTool,
			Message: fmt.Sprintf("unknown tool %q", tool),
		}
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return handler(s, ctx, params)
}

// Close releases every page owned by the session. It is idempotent and
// returns nil on repeat calls.
func (s *rodSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pages := s.pages
	s.pages = nil
	s.mu.Unlock()

	var firstErr error
	for _, page := range pages {
		if err := page.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close page: %w", err)
		}
	}
	if s.factory != nil {
		s.factory.release()
	}
	return firstErr
}

// page returns the current page under the session lock.
func (s *rodSession) page() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	page, ok := s.pages[s.current]
	if !ok {
		return nil, &ToolError{
			Code:    CodeTargetNotFound,
			Message: "no active page",
		}
	}
	return page, nil
}

func (s *rodSession) navigate(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	page, err := s.page()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	p := page.Context(ctx).Timeout(actionTimeout(params))
	if err := p.Navigate(url); err != nil {
		return nil, &ToolError{
			Code:    CodeNavigationFailed,
			Message: fmt.Sprintf("navigate to %s: %v", url, err),
			Details: map[string]interface{}{"url": url},
		}
	}
	if err := p.WaitLoad(); err != nil {
		return nil, &ToolError{
			Code:    CodeNavigationFailed,
			Message: fmt.Sprintf("wait for load of %s: %v", url, err),
			Details: map[string]interface{}{"url": url},
		}
	}

	info, err := page.Info()
	title := ""
	finalURL := url
	if err == nil {
		title = info.Title
		finalURL = info.URL
	}
	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"url":         finalURL,
			"title":       title,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	}, nil
}

func (s *rodSession) snapshot(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Timeout(actionTimeout(params))

	text := ""
	if obj, err := p.Eval(`() => document.body ? document.body.innerText : ""`); err == nil {
		text = obj.Value.String()
	}
	text, truncated := truncateRunes(text, intParamOr(params, "max_length", maxSnapshotChars))

	title := ""
	url := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
		url = info.URL
	}
	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"url":       url,
			"title":     title,
			"text":      text,
			"truncated": truncated,
		},
	}, nil
}

func (s *rodSession) click(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	selector, err := stringParam(params, "selector")
	if err != nil {
		return nil, err
	}
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Timeout(actionTimeout(params))

	elem, err := p.Element(selector)
	if err != nil {
		return nil, elementNotFound(selector, err)
	}
	if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, &ToolError{
			Code:    CodeScriptFailed,
			Message: fmt.Sprintf("click %s: %v", selector, err),
			Details: map[string]interface{}{"selector": selector},
		}
	}
	return &ToolResult{
		Status: "ok",
		Data:   map[string]interface{}{"selector": selector},
	}, nil
}

func (s *rodSession) typeText(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	selector, err := stringParam(params, "selector")
	if err != nil {
		return nil, err
	}
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Timeout(actionTimeout(params))

	elem, err := p.Element(selector)
	if err != nil {
		return nil, elementNotFound(selector, err)
	}
	if boolParamOr(params, "clear", true) {
		if err := elem.SelectAllText(); err == nil {
			elem.Input("")
		}
	}
	if err := elem.Input(text); err != nil {
		return nil, &ToolError{
			Code:    CodeScriptFailed,
			Message: fmt.Sprintf("type into %s: %v", selector, err),
			Details: map[string]interface{}{"selector": selector},
		}
	}
	if boolParamOr(params, "submit", false) {
		if err := elem.Type(input.Enter); err != nil {
			return nil, &ToolError{
				Code:    CodeScriptFailed,
				Message: fmt.Sprintf("submit in %s: %v", selector, err),
				Details: map[string]interface{}{"selector": selector},
			}
		}
	}
	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"selector": selector,
			"length":   len(text),
		},
	}, nil
}

func (s *rodSession) waitFor(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	selector, err := stringParam(params, "selector")
	if err != nil {
		return nil, err
	}
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Timeout(actionTimeout(params))

	started := time.Now()
	if _, err := p.Element(selector); err != nil {
		return nil, elementNotFound(selector, err)
	}
	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"selector":  selector,
			"waited_ms": time.Since(started).Milliseconds(),
		},
	}, nil
}

func (s *rodSession) takeScreenshot(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Timeout(actionTimeout(params))

	fullPage := boolParamOr(params, "full_page", false)
	data, err := p.Screenshot(fullPage, nil)
	if err != nil {
		return nil, &ToolError{
			Code:    CodeScriptFailed,
			Message: fmt.Sprintf("screenshot: %v", err),
		}
	}

	result := map[string]interface{}{
		"format":    "png",
		"full_page": fullPage,
		"image":     base64.StdEncoding.EncodeToString(data),
	}
	if s.artifactDir != "" {
		name := fmt.Sprintf("screenshot-%s.png", uuid.NewString())
		path := filepath.Join(s.artifactDir, name)
		if err := os.MkdirAll(s.artifactDir, 0o755); err == nil {
			if err := os.WriteFile(path, data, 0o644); err == nil {
				result["path"] = path
			}
		}
	}
	return &ToolResult{Status: "ok", Data: result}, nil
}

func (s *rodSession) tabNew(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	url := stringParamOr(params, "url", "about:blank")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, &ToolError{
			Code:    CodeNavigationFailed,
			Message: fmt.Sprintf("open tab %s: %v", url, err),
			Details: map[string]interface{}{"url": url},
		}
	}
	id := string(page.TargetID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		page.Close()
		return nil, ErrSessionClosed
	}
	s.pages[id] = page
	s.current = id
	count := len(s.pages)
	s.mu.Unlock()

	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"target_id": id,
			"url":       url,
			"tab_count": count,
		},
	}, nil
}

func (s *rodSession) tabClose(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	id := stringParamOr(params, "target_id", s.current)
	page, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		return nil, &ToolError{
			Code:    CodeTargetNotFound,
			Message: fmt.Sprintf("no tab with target id %q", id),
			Details: map[string]interface{}{"target_id": id},
		}
	}
	delete(s.pages, id)
	if s.current == id {
		s.current = ""
		for remaining := range s.pages {
			s.current = remaining
			break
		}
	}
	count := len(s.pages)
	s.mu.Unlock()

	if err := page.Close(); err != nil {
		return nil, &ToolError{
			Code:    CodeScriptFailed,
			Message: fmt.Sprintf("close tab %s: %v", id, err),
			Details: map[string]interface{}{"target_id": id},
		}
	}
	return &ToolResult{
		Status: "ok",
		Data: map[string]interface{}{
			"target_id": id,
			"tab_count": count,
		},
	}, nil
}

// closeTool is the browser_close tool: it tears down the whole session.
func (s *rodSession) closeTool(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	s.mu.Lock()
	count := len(s.pages)
	s.mu.Unlock()

	if err := s.Close(); err != nil {
		return nil, &ToolError{
			Code:    CodeScriptFailed,
			Message: fmt.Sprintf("close session: %v", err),
		}
	}
	return &ToolResult{
		Status: "ok",
		Data:   map[string]interface{}{"closed_tabs": count},
	}, nil
}

func elementNotFound(selector string, err error) *ToolError {
	return &ToolError{
		Code:    CodeElementNotFound,
		Message: fmt.Sprintf("element %q not found: %v", selector, err),
		Details: map[string]interface{}{"selector": selector},
	}
}

// truncateRunes caps text at limit characters, cutting on a rune boundary
// so the last character survives intact.
func truncateRunes(text string, limit int) (string, bool) {
	if limit <= 0 || len(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]), true
}

func actionTimeout(params map[string]interface{}) time.Duration {
	if secs := intParamOr(params, "timeout", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultActionTimeout
}
