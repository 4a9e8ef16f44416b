// internal/checker/checker.go
package checker

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/regbot-cli/internal/form"
)

// PageReader is the read-only browser surface the checker inspects.
type PageReader interface {
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
}

// Outcome is the classification of a post-submission page. Indeterminate
// outcomes are not errors; the run records them and continues.
type Outcome struct {
	Success       bool
	Indeterminate bool
	Message       string
	MatchedPhrase string
	PageURL       string
}

// Checker classifies registration outcomes by scanning page text for known
// phrases. Matching is lowercase substring matching; success phrases win over
// error phrases, and a URL hint is the last resort before indeterminate.
type Checker struct {
	logger  *zap.Logger
	phrases form.PhraseSet
}

// NewChecker creates a Checker. Empty phrase sets fall back to the defaults.
func NewChecker(phrases form.PhraseSet, logger *zap.Logger) *Checker {
	if len(phrases.Success) == 0 && len(phrases.Error) == 0 {
		phrases = form.DefaultProfile().Phrases
	}
	return &Checker{
		logger:  logger.Named("checker"),
		phrases: phrases,
	}
}

// Check reads the page and classifies it. When the body text is unreadable or
// blank it falls back to extracting text nodes from the outer HTML. Read
// failures degrade the input rather than failing the check.
func (c *Checker) Check(ctx context.Context, page PageReader) Outcome {
	text, err := page.Text(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			c.logger.Debug("Could not read page text, falling back to HTML.", zap.Error(err))
		}
		if raw, herr := page.HTML(ctx); herr == nil {
			text = ExtractText(raw)
		} else {
			c.logger.Warn("Could not read page HTML either.", zap.Error(herr))
		}
	}

	pageURL, err := page.Location(ctx)
	if err != nil {
		c.logger.Debug("Could not read page URL.", zap.Error(err))
	}

	return c.Classify(text, pageURL)
}

// Classify applies the phrase heuristics to already-collected page state.
func (c *Checker) Classify(text, pageURL string) Outcome {
	lowerText := strings.ToLower(text)

	for _, phrase := range c.phrases.Success {
		if strings.Contains(lowerText, strings.ToLower(phrase)) {
			return Outcome{
				Success:       true,
				Message:       fmt.Sprintf("detected confirmation %q", phrase),
				MatchedPhrase: phrase,
				PageURL:       pageURL,
			}
		}
	}

	for _, phrase := range c.phrases.Error {
		if strings.Contains(lowerText, strings.ToLower(phrase)) {
			return Outcome{
				Success:       false,
				Message:       fmt.Sprintf("detected error text %q", phrase),
				MatchedPhrase: phrase,
				PageURL:       pageURL,
			}
		}
	}

	urlTarget := urlMatchTarget(pageURL)
	for _, hint := range c.phrases.URLHints {
		if strings.Contains(urlTarget, strings.ToLower(hint)) {
			return Outcome{
				Success:       true,
				Message:       fmt.Sprintf("url indicates success (%q)", hint),
				MatchedPhrase: hint,
				PageURL:       pageURL,
			}
		}
	}

	return Outcome{
		Indeterminate: true,
		Message:       "indeterminate result: no known confirmation or error text found",
		PageURL:       pageURL,
	}
}

// urlMatchTarget narrows hint matching to the path and query so a hint never
// matches the host name. Unparseable URLs are matched as-is.
func urlMatchTarget(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return strings.ToLower(pageURL)
	}
	return strings.ToLower(u.Path + "?" + u.RawQuery)
}

// ExtractText walks an HTML document and collects its visible text nodes,
// skipping script and style subtrees. Unparseable input is returned as-is.
func ExtractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(trimmed)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return sb.String()
}
