package main

import "github.com/KaramelBytes/lamap-cli/cmd"

func main() {
	cmd.Execute()
}
