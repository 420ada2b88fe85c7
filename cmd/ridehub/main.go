// Command ridehub はライドシェアサービスのユーザー管理APIを提供する。
//
// 使い方:
//
//	ridehub [serve|migrate [down]|seed|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/ridehub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ridehub: %v\n", err)
		os.Exit(1)
	}
}
