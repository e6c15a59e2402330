package catalog

// BrowserSpecs declares the browser automation tool set. The same
// declarations back both operating modes: the full gateway wires them to a
// live engine session, the simple gateway advertises them statically.
func BrowserSpecs() []Spec {
	return []Spec{
		{
			Name:        "browser_navigate",
			Description: "Navigate the current tab to a URL and wait for the page to load.",
			Parameters: []Parameter{
				{Name: "url", Type: "string", Description: "URL to navigate to", Required: true},
				{Name: "timeout", Type: "integer", Description: "Navigation timeout in seconds (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_snapshot",
			Description: "Capture a structural snapshot of the current page: title, URL, and visible text outline.",
			Parameters: []Parameter{
				{Name: "max_length", Type: "integer", Description: "Maximum snapshot text length in characters (default: 20000)", Default: 20000},
				{Name: "timeout", Type: "integer", Description: "Seconds to wait for the page (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_click",
			Description: "Click the first element matching a CSS selector.",
			Parameters: []Parameter{
				{Name: "selector", Type: "string", Description: "CSS selector of the element to click", Required: true},
				{Name: "timeout", Type: "integer", Description: "Seconds to wait for the element (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_type",
			Description: "Type text into the first element matching a CSS selector.",
			Parameters: []Parameter{
				{Name: "selector", Type: "string", Description: "CSS selector of the input element", Required: true},
				{Name: "text", Type: "string", Description: "Text to type", Required: true},
				{Name: "clear", Type: "boolean", Description: "Clear the field before typing (default: true)", Default: true},
				{Name: "submit", Type: "boolean", Description: "Press Enter after typing (default: false)", Default: false},
				{Name: "timeout", Type: "integer", Description: "Seconds to wait for the element (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_wait_for",
			Description: "Wait until an element matching a CSS selector appears.",
			Parameters: []Parameter{
				{Name: "selector", Type: "string", Description: "CSS selector to wait for", Required: true},
				{Name: "timeout", Type: "integer", Description: "Seconds to wait (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_take_screenshot",
			Description: "Capture a screenshot of the current tab. Saves a PNG artifact and returns it base64-encoded.",
			Parameters: []Parameter{
				{Name: "full_page", Type: "boolean", Description: "Capture the full scrollable page (default: false)", Default: false},
				{Name: "timeout", Type: "integer", Description: "Seconds to wait for the capture (default: 30)", Default: 30},
			},
		},
		{
			Name:        "browser_tab_new",
			Description: "Open a new tab, optionally navigating it to a URL.",
			Parameters: []Parameter{
				{Name: "url", Type: "string", Description: "URL to open in the new tab"},
			},
		},
		{
			Name:        "browser_tab_close",
			Description: "Close a tab by target id, or the current tab when no id is given.",
			Parameters: []Parameter{
				{Name: "target_id", Type: "string", Description: "Target id of the tab to close (default: current tab)"},
			},
		},
		{
			Name:        "browser_close",
			Description: "Close all tabs owned by this session.",
		},
	}
}

// Browser builds the browser tool catalog. Declaration order here is the
// advertised order for the process lifetime.
func Browser() (*Catalog, error) {
	return New(BrowserSpecs())
}
