package main

import "github.com/aaronpaddy/slack-mcp-server/cmd"

func main() {
	cmd.Execute()
}
