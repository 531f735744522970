package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"imgtranslate/internal/language"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the supported target languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if jsonOutput {
			data, err := json.MarshalIndent(language.All(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to create JSON output: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%-10s %-10s %s\n", "LANGUAGE", "MODEL", "SPEECH")
		for _, l := range language.All() {
			fmt.Printf("%-10s %-10s %s\n", l.Name, l.TargetCode, l.SpeechCode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)

	languagesCmd.Flags().Bool("json", false, "Output as JSON")
}
