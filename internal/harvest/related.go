package harvest

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// relatedSelectors locate the related-searches block on a result page.
// The page structure changes often, so selectors are tried in priority
// order and the first one with hits wins.
var relatedSelectors = []cascadia.Selector{
	cascadia.MustCompile(`div[data-sgrd="true"] a`),
	cascadia.MustCompile(`.s75CSd a`),
	cascadia.MustCompile(`.k8XOCe a`),
	cascadia.MustCompile(`[data-sgrd] a`),
	cascadia.MustCompile(`.related-question-pair a`),
}

// titleSelector matches organic result titles, used for the variation
// fallback when the structural parse finds too little.
var titleSelector = cascadia.MustCompile(`h3 a, .g h3, [data-ved] h3, .LC20lb`)

// relatedMinStructural is the structural-parse yield below which the
// title-variation fallback kicks in.
const relatedMinStructural = 3

// relatedMaxResults caps the related-searches output per seed.
const relatedMaxResults = 8

// relatedSearches extracts related queries for one seed from a result
// page: structural selectors first, title co-occurrence variations when
// those yield fewer than three, and templated variants as the final
// backstop.
func (h *Harvester) relatedSearches(ctx context.Context, seed string) ([]string, error) {
	params := url.Values{}
	params.Set("q", seed)
	for key, value := range h.market.QueryParams() {
		params.Set(key, value)
	}
	endpoint := h.cfg.SearchHost + "/search?" + params.Encode()

	body, err := h.client.Fetch(ctx, endpoint, string(keyword.ChannelRelated))
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	related := parseRelatedBlock(doc)
	if len(related) < relatedMinStructural {
		related = append(related, titleVariations(doc, seed)...)
	}
	if len(related) < relatedMinStructural {
		related = append(related, templatedRelated(seed)...)
	}

	out := filterSuggestions(related)
	if len(out) > relatedMaxResults {
		out = out[:relatedMaxResults]
	}
	slog.Debug("related searches extracted", "seed", seed, "count", len(out))
	return out, nil
}

// parseRelatedBlock tries each structural selector in order, stopping at
// the first with results.
func parseRelatedBlock(doc *html.Node) []string {
	for _, sel := range relatedSelectors {
		var found []string
		for _, node := range sel.MatchAll(doc) {
			text := strings.TrimSpace(nodeText(node))
			if len(text) > 3 && len(text) < 100 {
				found = append(found, text)
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// titleVariations derives "<seed> <next-word>" and "<prev-word> <seed>"
// combinations from result titles that mention the seed.
func titleVariations(doc *html.Node, seed string) []string {
	seedLower := strings.ToLower(seed)
	var variations []string

	for _, node := range titleSelector.MatchAll(doc) {
		text := strings.TrimSpace(nodeText(node))
		if len(text) <= 3 || !strings.Contains(strings.ToLower(text), seedLower) {
			continue
		}
		words := strings.Fields(text)
		for i, word := range words {
			if strings.ToLower(word) != seedLower {
				continue
			}
			if i+1 < len(words) {
				if combined := seed + " " + words[i+1]; len(combined) < 50 {
					variations = append(variations, combined)
				}
			}
			if i > 0 {
				if combined := words[i-1] + " " + seed; len(combined) < 50 {
					variations = append(variations, combined)
				}
			}
		}
	}
	return variations
}

// templatedRelated is the last-resort related list: common prefix and
// suffix variations of the seed.
func templatedRelated(seed string) []string {
	return []string{
		"curso " + seed,
		seed + " online",
		seed + " gratis",
		seed + " digital",
		"que es " + seed,
		seed + " curso",
		"como hacer " + seed,
		seed + " profesional",
		"herramientas " + seed,
		seed + " estrategia",
	}
}

// nodeText concatenates the text content of a node's subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
