package main

import "github.com/vietddude/sheetfix/internal/cli"

func main() {
	cli.Execute()
}
