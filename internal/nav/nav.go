// Package nav holds the navigation bar state the server renders. The page
// script keeps the highlight current while scrolling, using the thresholds
// rendered from Bar.
package nav

import "strings"

// Layout thresholds, in pixels.
const (
	ActiveOffset  = 550 // a section activates this far before its top
	ScrollOffset  = 100 // click-to-section lands this far above the top
	ScrolledAfter = 20  // the bar gains its background past this offset
)

// DefaultSectionID is active before the first scroll.
const DefaultSectionID = "Home"

// Item is a navigation link.
type Item struct {
	Href  string
	Label string
}

// ID returns the section id the item points at.
func (i Item) ID() string {
	if len(i.Href) > 0 && i.Href[0] == '#' {
		return i.Href[1:]
	}
	return i.Href
}

// Items are the navigation links in page order.
var Items = []Item{
	{Href: "#Home", Label: "Home"},
	{Href: "#About", Label: "About"},
	{Href: "#Portofolio", Label: "Portofolio"},
	{Href: "#Contact", Label: "Contact"},
}

// Tracker holds the highlighted section. It is not safe for concurrent use.
type Tracker struct {
	active string
}

// NewTracker returns a tracker with the first section active.
func NewTracker() *Tracker {
	return &Tracker{active: DefaultSectionID}
}

// Select highlights the section id. Unknown ids leave the current section
// active and report false.
func (t *Tracker) Select(id string) bool {
	for _, it := range Items {
		if it.ID() == id {
			t.active = id
			return true
		}
	}
	return false
}

// Active returns the highlighted section id.
func (t *Tracker) Active() string { return t.active }

// Bar is the navigation bar as rendered for one page.
type Bar struct {
	Brand         string
	Active        string
	Items         []Item
	ActiveOffset  int
	ScrollOffset  int
	ScrolledAfter int
}

// Bar returns the bar for the site owner's name, branded with the first name.
func (t *Tracker) Bar(owner string) Bar {
	brand := strings.TrimSpace(owner)
	if fields := strings.Fields(owner); len(fields) > 0 {
		brand = fields[0]
	}
	return Bar{
		Brand:         brand,
		Active:        t.active,
		Items:         Items,
		ActiveOffset:  ActiveOffset,
		ScrollOffset:  ScrollOffset,
		ScrolledAfter: ScrolledAfter,
	}
}
