// Package feedparse はRSS/Atomフィード文書から記事メタデータを抽出する。
package feedparse

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/security"
)

// imgSrcPattern はdescription内に埋め込まれたHTMLから最初のimgタグのsrcを抽出する。
var imgSrcPattern = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// Parser はフィード文書をRawArticleの列へ変換する。
// パーサーは寛容であり、タイトルやリンクを欠く記事も除外しない
// （フィルタリングはパイプライン側の責務）。
type Parser struct {
	sanitizer security.TextSanitizerService
}

// New はParserの新しいインスタンスを生成する。
func New(sanitizer security.TextSanitizerService) *Parser {
	return &Parser{sanitizer: sanitizer}
}

// Parse はフィード文書をパースしてRawArticleの列を返す。
// RSS・Atomの判別はgofeedに委ねる。期待フォーマットとしてパースできない
// 文書はエラーではなく空列を返す。
func (p *Parser) Parse(body string) []model.RawArticle {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil
	}

	articles := make([]model.RawArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		link := strings.TrimSpace(item.Link)
		// Atomの一部フィードはlink要素を持たずGUIDがURLである
		if link == "" && isHTTPURL(item.GUID) {
			link = strings.TrimSpace(item.GUID)
		}

		articles = append(articles, model.RawArticle{
			Title:        p.sanitizer.CleanText(item.Title),
			Link:         link,
			RawDate:      rawDate(item),
			ThumbnailURL: extractThumbnail(item),
		})
	}

	return articles
}

// rawDate は存在する方の日付文字列を未加工のまま返す。
// 正規化はdatesパッケージの責務であり、ここでは選択のみを行う。
func rawDate(item *gofeed.Item) string {
	if d := strings.TrimSpace(item.Published); d != "" {
		return d
	}
	return strings.TrimSpace(item.Updated)
}

// extractThumbnail は記事のサムネイルURLを抽出する。
// 優先順位: 構造化されたメディア要素（image/enclosure/media:content）、
// description内のimgタグ、固定フォールバック。
func extractThumbnail(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, e := range media[name] {
				if u := e.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	if m := imgSrcPattern.FindStringSubmatch(item.Description); m != nil {
		return m[1]
	}

	return model.FallbackThumbnail
}

func isHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
