package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by build flags.
var Version = "0.1.0-dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ddp",
	Short: "ddp runs and inspects Deutsche Programmiersprache programs",
	Long: `ddp scans, compiles, and executes programs written in a German-language
imperative scripting dialect: Scanner -> Pratt-style Compiler -> stack-based
Virtual Machine, no intermediate AST.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
`))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
