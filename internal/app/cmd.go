package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーとシステムソースのキャッシュ更新を起動する。
	CommandServe Command = "serve"
	// CommandWorker はセッションクリーンアップのワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// Invocation は解析済みのコマンドライン。
type Invocation struct {
	Command Command
	// Migrate はCommandMigrateの場合のみ設定される。
	Migrate MigrateAction
}

// Usage はサブコマンドの一覧。
const Usage = "usage: policyfeed [serve | worker | migrate [up|down|version] | healthcheck]"

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はserveとする。未知のサブコマンドはエラーを返す。
func ParseCommand(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	switch cmd := Command(strings.ToLower(args[0])); cmd {
	case CommandServe, CommandWorker, CommandHealthcheck:
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		action, err := parseMigrateAction(args[1:])
		if err != nil {
			return Invocation{}, err
		}
		return Invocation{Command: cmd, Migrate: action}, nil
	default:
		return Invocation{}, fmt.Errorf("unknown command %q\n%s", args[0], Usage)
	}
}

func parseMigrateAction(args []string) (MigrateAction, error) {
	if len(args) == 0 {
		return MigrateUp, nil
	}
	switch action := MigrateAction(strings.ToLower(args[0])); action {
	case MigrateUp, MigrateDown, MigrateVersion:
		return action, nil
	default:
		return "", fmt.Errorf("unknown migrate action %q\n%s", args[0], Usage)
	}
}
