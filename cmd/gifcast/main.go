package main

import "gifcast/internal/cli"

func main() {
	cli.Main()
}
