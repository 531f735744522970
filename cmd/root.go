package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"imgtranslate/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "imgtranslate",
	Short: "Extract English text from images and translate it into Indian languages",
	Long: `imgtranslate runs OCR over uploaded images, translates the extracted English
text into one of seven Indian languages with a multilingual translation model,
and can read the translation aloud.

Start the browser UI with "imgtranslate serve", or process files directly
with "imgtranslate translate".`,
	Version: version,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
