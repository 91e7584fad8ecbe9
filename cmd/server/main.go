package main

import "Metafetch/internal/cli"

func main() {
	cli.Execute()
}
