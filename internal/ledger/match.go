package ledger

import (
	"sort"
	"strings"
	"unicode"

	"resale-ledger-go/internal/models"
)

// Scoring weights for ranking sale candidates against an anchor purchase.
// Smart-tag agreement dominates; everything below it refines the order.
const (
	scoreTagMatch     = 80
	scoreTagMismatch  = -50
	scoreKeywordMatch = 40
	scoreKeywordClash = -20
	scoreSubstring    = 30
	scorePerToken     = 10
)

// keywordRule maps a fine category to the name keywords that imply it. The
// table is ordered: the first rule whose keywords hit a name wins, so the
// detection is deterministic regardless of map iteration.
type keywordRule struct {
	tag      string
	keywords []string
}

var keywordRules = []keywordRule{
	{models.TagConsoles, []string{"iphone", "ipad", "switch", "ps5", "ps4", "xbox", "macbook", "手机", "主机", "平板", "游戏机"}},
	{models.TagApparel, []string{"nike", "adidas", "shoes", "jacket", "aj", "鞋", "衣", "裤", "外套", "卫衣"}},
	{models.TagCamera, []string{"canon", "nikon", "sony", "fuji", "lens", "相机", "镜头", "胶片", "ccd"}},
	{models.TagCollectibles, []string{"lego", "pokemon", "卡牌", "手办", "盲盒", "积木", "模型", "高达"}},
	{models.TagMedia, []string{"book", "vinyl", "cd", "书", "唱片", "漫画", "杂志"}},
	{models.TagBeauty, []string{"香水", "口红", "面霜", "粉底", "美妆"}},
}

// detectKeywordTag runs a lower-cased name through the keyword table and
// returns the first matching fine category, or "" when nothing hits.
func detectKeywordTag(lowerName string) string {
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowerName, kw) {
				return rule.tag
			}
		}
	}
	return ""
}

// tokenize splits a lower-cased name into a set of ASCII alphanumeric words
// and individual Han ideographs. "iphone 13 pro" and "二手相机" both yield
// three tokens.
func tokenize(lowerName string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens[word.String()] = struct{}{}
			word.Reset()
		}
	}
	for _, r := range lowerName {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tokens[string(r)] = struct{}{}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// MatchScore computes the additive similarity score between an anchor
// purchase and one sale candidate. The score may go negative.
func MatchScore(anchor, candidate models.Record) int {
	anchorName := strings.ToLower(anchor.Name)
	candName := strings.ToLower(candidate.Name)
	score := 0

	// Smart tags from the external classifier outrank everything; skip the
	// term when either side was never classified.
	if anchor.SmartTag != "" && candidate.SmartTag != "" {
		if anchor.SmartTag == candidate.SmartTag {
			score += scoreTagMatch
		} else {
			score += scoreTagMismatch
		}
	}

	if at, ct := detectKeywordTag(anchorName), detectKeywordTag(candName); at != "" && ct != "" {
		if at == ct {
			score += scoreKeywordMatch
		} else {
			score += scoreKeywordClash
		}
	}

	if anchorName != "" && candName != "" &&
		(strings.Contains(anchorName, candName) || strings.Contains(candName, anchorName)) {
		score += scoreSubstring
	}

	anchorTokens := tokenize(anchorName)
	for token := range tokenize(candName) {
		if _, ok := anchorTokens[token]; ok {
			score += scorePerToken
		}
	}
	return score
}

// RankedMatch pairs a sale candidate with its score against the anchor.
type RankedMatch struct {
	Record models.Record `json:"record"`
	Score  int           `json:"score"`
}

// RankMatches orders sale candidates for an anchor purchase, best match
// first. Equal scores order by most recent sale date, then keep their
// original relative order. A nil anchor skips scoring entirely and returns
// the candidates by recency.
func RankMatches(anchor *models.Record, candidates []models.Record) []RankedMatch {
	ranked := make([]RankedMatch, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedMatch{Record: c}
		if anchor != nil {
			ranked[i].Score = MatchScore(*anchor, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if anchor != nil && ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Record.SaleTime().After(ranked[j].Record.SaleTime())
	})
	return ranked
}

// Matches ranks the collection's orphan sales against the record with the
// given id. An empty id means no anchor: the orphan sales come back in
// recency order for browsing.
func (s *Store) Matches(anchorID string) ([]RankedMatch, error) {
	candidates := s.FilterByState(models.StateOrphanSale)
	if anchorID == "" {
		return RankMatches(nil, candidates), nil
	}

	anchor, ok := s.Get(anchorID)
	if !ok {
		return nil, ErrNotFound
	}
	return RankMatches(&anchor, candidates), nil
}
