package chromedp_browser

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/moicben/calendar-agent/internal/entity"
)

// widgetSelectors match embedded or hosted booking calendars.
var widgetSelectors = []string{
	".calendly-inline-widget",
	"[data-calendly]",
	"[data-cal-link]",
	"[data-cal-namespace]",
	`iframe[src*="calendly.com"]`,
	`iframe[src*="cal.com"]`,
	`iframe[src*="calendar.google.com"]`,
	`[data-container="booking-container"]`,
	`[data-testid="day"]`,
	`[data-testid="calendar"]`,
	`[role="grid"]`,
}

// notFoundMarkers never hold a bare status code: "404" alone shows up in
// studio and brand names.
var notFoundMarkers = []string{
	"404 not found",
	"error 404",
	"erreur 404",
	"page not found",
	"this page could not be found",
	"this calendly url is not valid",
	"page introuvable",
	"n'existe pas",
}

// AnalyzePage inspects rendered html of url. A 404/410 status or a
// not-found marker in the title or main heading marks the page as missing.
func AnalyzePage(url string, status int64, html string) (*entity.PageProbe, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	probe := &entity.PageProbe{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if status == http.StatusNotFound || status == http.StatusGone {
		probe.NotFound = true
	} else {
		heading := strings.ToLower(probe.Title + " " + doc.Find("h1").First().Text())
		for _, m := range notFoundMarkers {
			if strings.Contains(heading, m) {
				probe.NotFound = true
				break
			}
		}
	}

	for _, sel := range widgetSelectors {
		if doc.Find(sel).Length() > 0 {
			probe.HasWidget = true
			break
		}
	}
	return probe, nil
}
