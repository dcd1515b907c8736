// Package relay はCORSリレー経由のフィード取得を提供する。
// リレーは交換可能で信頼性の低いサードパーティ中継であり、
// 個々の失敗は正常系として扱う。
package relay

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Relay は1つのリレーエンドポイントのURL書き換えテンプレートを表す。
// TemplateはURLエンコード済みターゲットを埋め込む%s入りの書式文字列。
type Relay struct {
	Name     string
	Template string
}

// DefaultRelays は既定のリレーリストを定義順（試行優先順）で返す。
func DefaultRelays() []Relay {
	return []Relay{
		{Name: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest=%s"},
		{Name: "corsproxy", Template: "https://corsproxy.io/?%s"},
		{Name: "allorigins", Template: "https://api.allorigins.win/raw?url=%s"},
	}
}

// BuildURL はターゲットURLをリレー経由のフェッチURLへ書き換える。
// リレーが古いレスポンスを返さないようキャッシュバスト用の_tsパラメータを付与する。
func (r Relay) BuildURL(target string, now time.Time) string {
	u := fmt.Sprintf(r.Template, url.QueryEscape(target))
	bust := "_ts=" + strconv.FormatInt(now.UnixMilli(), 10)
	if strings.Contains(u, "?") {
		return u + "&" + bust
	}
	return u + "?" + bust
}
