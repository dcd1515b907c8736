package config

// SourceKind はフィードソースの取得・パース方式を表す。
type SourceKind string

const (
	// SourceRSS はRSS/Atomフィードとしてパースするソース。
	SourceRSS SourceKind = "rss"
	// SourceHTML はHTMLスクレイピングでパースするソース。
	// RSSを提供しないサイト向けの特殊ケースで、同じソース契約の別実装として扱う。
	SourceHTML SourceKind = "html"
)

// FeedSource は1つのフィードソースのURLと種別を表す。
type FeedSource struct {
	URL  string
	Kind SourceKind
}

// CountryFeedSet は国キーからフィードソースの順序付きリストへの静的マッピング。
// 起動時に構築し、実行時には変更しない。リスト内の順序はフェッチの
// タイブレーク順を定義する（表示順ではない）。
type CountryFeedSet struct {
	order   []string
	sources map[string][]FeedSource
}

// NewCountryFeedSet は空のCountryFeedSetを生成する。
func NewCountryFeedSet() *CountryFeedSet {
	return &CountryFeedSet{sources: make(map[string][]FeedSource)}
}

// Add は国キーとそのフィードソースリストを定義順の末尾に登録する。
func (s *CountryFeedSet) Add(country string, feeds []FeedSource) {
	if _, ok := s.sources[country]; !ok {
		s.order = append(s.order, country)
	}
	s.sources[country] = feeds
}

// DefaultCountryFeedSet は既定の国別フィード構成を返す。国ごとに主要5媒体。
func DefaultCountryFeedSet() *CountryFeedSet {
	rss := func(urls ...string) []FeedSource {
		out := make([]FeedSource, 0, len(urls))
		for _, u := range urls {
			out = append(out, FeedSource{URL: u, Kind: SourceRSS})
		}
		return out
	}

	s := NewCountryFeedSet()
	s.Add("hungary", rss(
		"https://index.hu/24ora/rss/",
		"https://telex.hu/rss",
		"https://444.hu/feed",
		"https://hvg.hu/rss",
		"https://magyarnemzet.hu/rss",
	))
	s.Add("croatia", rss(
		"https://www.24sata.hr/feeds/news.xml",
		"https://www.jutarnji.hr/rss",
		"https://www.vecernji.hr/rss",
		"https://www.dnevnik.hr/rss",
		"https://slobodnadalmacija.hr/feed",
	))
	s.Add("slovenia", rss(
		"https://www.rtvslo.si/rss",
		"https://www.delo.si/rss",
		"https://www.siol.net/rss",
		"https://www.24ur.com/rss",
		"https://www.slovenskenovice.si/rss",
	))
	s.Add("bosnia", rss(
		"https://www.klix.ba/rss",
		"https://www.avaz.ba/rss",
		"https://www.oslobodjenje.ba/rss",
		"https://www.nezavisne.com/rss",
		"https://radiosarajevo.ba/rss",
	))
	// politico.euはRSSを提供しないためHTMLスクレイピングで取得する
	s.Add("europe", []FeedSource{
		{URL: "https://www.politico.eu/", Kind: SourceHTML},
	})

	return s
}

// Countries は設定されている国キーを定義順で返す。
func (s *CountryFeedSet) Countries() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Sources は指定国のフィードソースリストを返す。未定義の国の場合はok=falseを返す。
func (s *CountryFeedSet) Sources(country string) ([]FeedSource, bool) {
	feeds, ok := s.sources[country]
	if !ok {
		return nil, false
	}
	out := make([]FeedSource, len(feeds))
	copy(out, feeds)
	return out, true
}

// Has は国キーが定義されているかを返す。
func (s *CountryFeedSet) Has(country string) bool {
	_, ok := s.sources[country]
	return ok
}
