// Streamchat CLI entry point
//
// Streamchat is an interactive client for a streaming text-generation
// endpoint. It keeps the conversation within a token budget, prints replies
// as they stream in and pins the server's certificate chain.
package main

import "github.com/jbctechsolutions/streamchat/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
