package main

import "apbeeper/internal/cli"

func main() {
	cli.Execute()
}
