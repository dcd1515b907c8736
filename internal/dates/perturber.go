package dates

import "time"

// Perturber は同一タイムスタンプの衝突を解消する。
// 相対表記のソースでは複数記事が同じ時刻に正規化されることが多く、
// そのままではソート順が不安定になる。衝突した時刻を発見順に1秒ずつ
// 過去方向へずらすことで、決定的で安定した相対順序を保証する。
// 並行安全ではない。パイプライン実行ごとに新しいインスタンスを使うこと。
type Perturber struct {
	used map[int64]struct{}
}

// NewPerturber は新しいPerturberを生成する。
func NewPerturber() *Perturber {
	return &Perturber{used: make(map[int64]struct{})}
}

// Apply は時刻tを未使用のタイムスタンプへ解決して返す。
// tが未使用ならそのまま、使用済みなら1秒ずつ遡って最初の空きを割り当てる。
// 同一時刻の記事は発見順に新しい→古いの順で並ぶことになる。
func (p *Perturber) Apply(t time.Time) time.Time {
	for {
		key := t.Unix()
		if _, taken := p.used[key]; !taken {
			p.used[key] = struct{}{}
			return t
		}
		t = t.Add(-time.Second)
	}
}
