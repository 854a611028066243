// Command agentpipe is the command line entry point: chat with a single
// agent, run the code pipeline or serve registered agents over HTTP.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "agentpipe",
	Short:         "Compose and run LLM agent pipelines",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("provider", "", "model provider (openai, anthropic, gemini); empty uses the configured default")
	rootCmd.AddCommand(runCmd, pipelineCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
