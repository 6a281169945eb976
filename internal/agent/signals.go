package agent

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// maxForms bounds how many forms are sampled per page.
	maxForms = 10
	// maxTextSample bounds the visible-text sample, in runes.
	maxTextSample = 800
	// maxCues bounds the reported lexicon matches.
	maxCues = 10
)

// FormSignal describes one form's credential-capture surface.
type FormSignal struct {
	HasPassword bool `json:"hasPassword"`
	HasCard     bool `json:"hasCard"`
}

// Signals is the lightweight content sample the agent reports to support
// content-based classification. No personal data is collected: only
// structural hints and a short text sample.
type Signals struct {
	URL        string       `json:"url"`
	Hostname   string       `json:"hostname"`
	Title      string       `json:"title"`
	Forms      []FormSignal `json:"forms"`
	CuesFound  []string     `json:"cuesFound"`
	TextSample string       `json:"textSample"`
}

// ExtractSignals samples a page document. It is read-only, has no side
// effects, and never touches the network.
func ExtractSignals(html, pageURL string, lexicon []string) (*Signals, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	sig := &Signals{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if u, err := url.Parse(pageURL); err == nil {
		sig.Hostname = u.Hostname()
	}

	doc.Find("form").EachWithBreak(func(i int, form *goquery.Selection) bool {
		if i >= maxForms {
			return false
		}
		sig.Forms = append(sig.Forms, sampleForm(form))
		return true
	})

	text := visibleText(doc)
	sig.TextSample = truncateRunes(text, maxTextSample)
	sig.CuesFound = matchCues(text, lexicon, maxCues)

	return sig, nil
}

func sampleForm(form *goquery.Selection) FormSignal {
	var fs FormSignal
	form.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		if typ, _ := input.Attr("type"); strings.EqualFold(typ, "password") {
			fs.HasPassword = true
		}
		name, _ := input.Attr("name")
		autocomplete, _ := input.Attr("autocomplete")
		if strings.Contains(strings.ToLower(name), "card") ||
			strings.Contains(strings.ToLower(autocomplete), "cc-") {
			fs.HasCard = true
		}
		return !(fs.HasPassword && fs.HasCard)
	})
	return fs
}

// visibleText flattens the body text with whitespace collapsed, skipping
// script and style content.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// matchCues returns the lexicon entries present in the text, preserving
// lexicon order, capped at limit.
func matchCues(text string, lexicon []string, limit int) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, cue := range lexicon {
		if len(found) >= limit {
			break
		}
		if strings.Contains(lower, strings.ToLower(cue)) {
			found = append(found, cue)
		}
	}
	return found
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
