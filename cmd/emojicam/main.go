package main

import "github.com/ayusman/emojicam/internal/cli"

func main() {
	cli.Execute()
}
