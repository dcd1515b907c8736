// Package scrape はRSSを提供しないサイト向けのHTMLスクレイピング実装を提供する。
// スクレイパーはフィードパーサーと同じ「文書→RawArticle列」の契約を満たす
// 別戦略であり、汎用パイプラインに分岐を埋め込まない。
package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/security"
)

// politicoBase は相対リンクの解決に使うベースURL。
const politicoBase = "https://www.politico.eu"

// PoliticoScraper はpolitico.euのトップページから記事を抽出する。
// このサイトは記事の公開時刻を「2 hrs ago」のような相対表記でしか
// 露出しないため、RawDateには相対表記がそのまま入る。
type PoliticoScraper struct {
	sanitizer security.TextSanitizerService
}

// NewPolitico はPoliticoScraperの新しいインスタンスを生成する。
func NewPolitico(sanitizer security.TextSanitizerService) *PoliticoScraper {
	return &PoliticoScraper{sanitizer: sanitizer}
}

// Parse はHTML文書から記事を抽出する。
// パース不能な文書や記事を含まない文書は空列を返す。
func (s *PoliticoScraper) Parse(body string) []model.RawArticle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var articles []model.RawArticle
	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		anchor := sel.Find("h1 a, h2 a, h3 a").First()
		href, _ := anchor.Attr("href")

		articles = append(articles, model.RawArticle{
			Title:        s.sanitizer.CleanText(anchor.Text()),
			Link:         absoluteLink(href),
			RawDate:      extractDate(sel),
			ThumbnailURL: extractImage(sel),
		})
	})

	return articles
}

// extractDate はtime要素から日付文字列を抽出する。
// datetime属性（絶対表記）があればそれを、なければ表示テキスト（相対表記）を返す。
func extractDate(sel *goquery.Selection) string {
	timeEl := sel.Find("time").First()
	if dt, ok := timeEl.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return strings.TrimSpace(timeEl.Text())
}

// extractImage はimg要素からサムネイルURLを抽出する。
// 遅延読み込みのdata-src属性も考慮する。
func extractImage(sel *goquery.Selection) string {
	img := sel.Find("img").First()
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if src, ok := img.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	return model.FallbackThumbnail
}

// absoluteLink は相対リンクをサイトのベースURLに対して解決する。
func absoluteLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return politicoBase + href
}
