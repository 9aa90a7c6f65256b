// Package hashid は記事や公開エントリの決定的なIDを生成する。
package hashid

import (
	"crypto/sha256"
	"fmt"
)

// Generate は正規化済み文字列のSHA-256を16進数文字列で返す。
// 同じ入力には常に同じIDを返す。
func Generate(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%x", sum)
}

// ForItem は記事リンクから記事IDを生成する。
func ForItem(link string) string {
	return Generate(link)
}
