package app

// Command はnewsdeskバイナリの起動モードを表す。
// 1つのバイナリをDocker Composeのcommand指定だけで
// APIサーバー・ワーカー・マイグレーションに使い分ける。
type Command string

const (
	// CommandServe はニュースAPIサーバーとして起動する。
	CommandServe Command = "serve"
	// CommandWorker は定期リフレッシュとアーカイブ退避のワーカーとして起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの/healthzを叩いて終了する。
	// distrolessイメージにはcurlがないため、DockerのHEALTHCHECKはこれを使う。
	CommandHealthcheck Command = "healthcheck"
)

// knownCommands は先頭引数とCommandの対応表。
var knownCommands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭のコマンドライン引数からサブコマンドを解析する。
// 引数なし・未知のコマンドはいずれもCommandServeにフォールバックし、
// 後続の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
