// Package view tracks which of the three top-level screens is visible.
package view

import (
	"fmt"
	"sync"
	"time"
)

// Name identifies a screen.
type Name string

const (
	Analysis Name = "analysis"
	Chat     Name = "chat"
	About    Name = "about"
)

// All lists the screens in navigation order.
var All = []Name{Analysis, Chat, About}

// ScrollDelay is how long the chat screen waits for layout to settle before
// scrolling the transcript to its end.
const ScrollDelay = 100 * time.Millisecond

// Title returns the navigation label of n.
func (n Name) Title() string {
	switch n {
	case Analysis:
		return "Analysis"
	case Chat:
		return "Character Chat"
	case About:
		return "About"
	default:
		return string(n)
	}
}

// Parse returns the screen called s.
func Parse(s string) (Name, error) {
	for _, n := range All {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("view: unknown view %q", s)
}

// State is the visible screen plus the pending scroll request.
type State struct {
	Active      Name
	ScrollToEnd bool
}

// Visible reports whether n is the shown screen.
func (s State) Visible(n Name) bool { return s.Active == n }

// Controller holds the active screen of one session. The zero value shows
// [Analysis]. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	active Name
	scroll bool
}

// Switch shows the screen called name. Unknown names are rejected and leave
// the current screen unchanged. Entering [Chat] requests a scroll to the end
// of the transcript.
func (c *Controller) Switch(name string) error {
	n, err := Parse(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.active = n
	c.scroll = n == Chat
	c.mu.Unlock()
	return nil
}

// RequestScroll asks the next render to scroll the transcript, used after a
// new chat message arrives.
func (c *Controller) RequestScroll() {
	c.mu.Lock()
	c.scroll = true
	c.mu.Unlock()
}

// Take returns the current view state and consumes any pending scroll
// request.
func (c *Controller) Take() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Active: c.active, ScrollToEnd: c.scroll}
	if st.Active == "" {
		st.Active = Analysis
	}
	c.scroll = false
	return st
}
