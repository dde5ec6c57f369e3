package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "keyless",
	Short:   "Admin tools for the keyless session server",
	Long:    `Admin tools for the keyless session server: session signing keys, community master keys and master key rotation.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

// writes the file, refusing to overwrite an existing one. Prints to stdout when no file is given.
func writeOutput(outputFile string, fileBytes []byte) {
	if outputFile == "" {
		fmt.Printf("\n%s\n", string(fileBytes))
		return
	}
	if _, err := os.Stat(outputFile); err == nil || !os.IsNotExist(err) {
		fmt.Printf("File already exists: %s\n", outputFile)
		os.Exit(1)
	}
	check(os.WriteFile(outputFile, fileBytes, 0600))
	fmt.Printf("Output file: %s\n", outputFile)
}
