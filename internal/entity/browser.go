package entity

// BrowserOptions configures one browser launch.
type BrowserOptions struct {
	Headless bool
	// Proxy routes all browser traffic when set.
	Proxy *Proxy
}
