// Command perplexity asks questions through the Perplexity AI web interface
// and can expose it as an OpenAI-compatible API.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
