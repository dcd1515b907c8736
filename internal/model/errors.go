package model

import "errors"

// フェッチ・集約パイプラインのエラー分類。
// 個別リレーの失敗はリレー層で吸収され、ここに列挙されるのは
// 呼び出し元の制御フローに影響するものだけである。
var (
	// ErrAllRelaysFailed は1つのフィードURLに対して全リレーが失敗したことを示す。
	// そのフィードの寄与を空として扱い、他フィードの処理は継続する。
	ErrAllRelaysFailed = errors.New("全リレーのフェッチに失敗しました")

	// ErrFeedUnreachable はフェッチまたはパースの失敗によりフィードから記事を
	// 取得できなかったことを示す。ErrAllRelaysFailedと同様に局所的に回復される。
	ErrFeedUnreachable = errors.New("フィードから記事を取得できませんでした")

	// ErrNoArticles は対象国の全フィードが失敗し、かつ保存済み記事も存在しない
	// 場合にのみパイプラインから返される。唯一のユーザー可視エラー状態。
	ErrNoArticles = errors.New("記事を取得できず、キャッシュも存在しません")

	// ErrUnknownCountry は設定に存在しない国キーが指定されたことを示す。
	ErrUnknownCountry = errors.New("未定義の国キーです")
)
