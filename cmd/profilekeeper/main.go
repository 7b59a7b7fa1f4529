// Command profilekeeper はOIDCログインとプロフィール編集を提供するWebアプリケーション。
//
// サブコマンド:
//
//	serve        Webサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションを適用する
//	cleanup      期限切れセッションを削除する
//	healthcheck  /health を確認する（distroless用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/profilekeeper/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "profilekeeper: %v\n", err)
		os.Exit(1)
	}
}
