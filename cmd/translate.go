package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"imgtranslate/internal/imaging"
	"imgtranslate/internal/language"
	"imgtranslate/internal/logger"
	"imgtranslate/internal/session"
	"imgtranslate/internal/speech"
)

var translateCmd = &cobra.Command{
	Use:   "translate [image...]",
	Short: "Extract and translate text from image files",
	Long: `Run the same pipeline as the web UI over image files on disk.

Each image is decoded, its English text extracted with OCR and, when text was
found, translated into the selected language. One result is printed per
image, in argument order. A file that cannot be processed produces a result
describing the failure instead of stopping the batch.

With --output-dir the translations are written as
translated_<name>_<language>.txt, and with --audio an MP3 reading of each
translation is written next to it.`,
	Example: `  # Translate a photo into Hindi
  imgtranslate translate --lang Hindi sign.jpg

  # Translate several scans into Tamil and save text and audio
  imgtranslate translate --lang Tamil --output-dir out --audio page1.png page2.png

  # Machine-readable output
  imgtranslate translate --json menu.jpeg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslate,
}

// TranslateOutput is one record of the --json output.
type TranslateOutput struct {
	FileName     string   `json:"file_name"`
	Language     string   `json:"language"`
	Extracted    string   `json:"extracted"`
	Translated   string   `json:"translated"`
	Diagnostics  []string `json:"diagnostics,omitempty"`
	DownloadFile string   `json:"download_file,omitempty"`
	AudioFile    string   `json:"audio_file,omitempty"`
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("lang", "l", language.Default().Name, "Target language ("+strings.Join(language.Names(), ", ")+")")
	translateCmd.Flags().StringP("output-dir", "o", "", "Directory for translated text files")
	translateCmd.Flags().Bool("audio", false, "Also write MP3 audio of each translation (requires --output-dir)")
	translateCmd.Flags().Bool("json", false, "Output as JSON")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("translate")

	langName, _ := cmd.Flags().GetString("lang")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	withAudio, _ := cmd.Flags().GetBool("audio")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	lang, ok := language.Lookup(langName)
	if !ok {
		return fmt.Errorf("unsupported language %q. Choose one of: %s", langName, strings.Join(language.Names(), ", "))
	}
	if withAudio && outputDir == "" {
		return fmt.Errorf("--audio requires --output-dir")
	}

	log.Info().
		Int("files", len(args)).
		Str("language", lang.Name).
		Str("output_dir", outputDir).
		Bool("audio", withAudio).
		Bool("json", jsonOutput).
		Msg("Starting translation")

	uploads, err := readImageFiles(args, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(log)
	defer cancel()

	p, extractor, _, err := createPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	results := p.Run(ctx, uploads, lang, func(pr session.Progress) {
		fmt.Fprintf(os.Stderr, "Processing %d of %d: %s\n", pr.Done, pr.Total, pr.Filename)
	})

	outputs := make([]TranslateOutput, 0, len(results))
	var synthesizer *speech.Synthesizer
	if withAudio {
		synthesizer = createSynthesizer(cfg)
	}

	for _, r := range results {
		out := TranslateOutput{
			FileName:    r.Filename,
			Language:    r.Language.Name,
			Extracted:   r.Extracted,
			Translated:  r.Translated,
			Diagnostics: r.Diagnostics,
		}

		if outputDir != "" && r.HasTranslation() {
			path, err := writeArtifact(outputDir, r.DownloadFilename(), []byte(r.Translated), log)
			if err != nil {
				return err
			}
			out.DownloadFile = path

			if synthesizer != nil {
				audio := synthesizer.Synthesize(ctx, r.Translated, r.Language.SpeechCode)
				if audio.OK() {
					name := strings.TrimSuffix(r.DownloadFilename(), ".txt") + ".mp3"
					if out.AudioFile, err = writeArtifact(outputDir, name, audio.Bytes(), log); err != nil {
						return err
					}
				} else {
					out.Diagnostics = append(out.Diagnostics, "Audio generation failed: "+audio.Err.Error())
				}
			}
		}
		outputs = append(outputs, out)
	}

	return printTranslations(outputs, jsonOutput, log)
}

// readImageFiles loads the argument files in order. Missing or unreadable
// files abort the command; undecodable content is left to the pipeline.
func readImageFiles(paths []string, log zerolog.Logger) ([]session.Upload, error) {
	uploads := make([]session.Upload, 0, len(paths))
	for _, path := range paths {
		if err := validateImageFile(path, log); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Failed to read image file")
			return nil, fmt.Errorf("failed to read image file: %w", err)
		}
		uploads = append(uploads, session.Upload{Filename: filepath.Base(path), Data: data})
	}
	return uploads, nil
}

// validateImageFile checks that path exists, is a regular file and carries an
// accepted image extension.
func validateImageFile(path string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return fmt.Errorf("path is not a regular file: %s", path)
	}

	if !imaging.HasAllowedExtension(path) {
		log.Error().Str("file", path).Msg("Unsupported image extension")
		return fmt.Errorf("unsupported file type: %s (accepted: %s)", path, strings.Join(imaging.AllowedExtensions, ", "))
	}
	return nil
}

func writeArtifact(dir, name string, data []byte, log zerolog.Logger) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to create output directory")
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Error().Err(err).Str("output_file", path).Msg("Failed to write output file")
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", path).
		Int("bytes", len(data)).
		Msg("Output written")
	return path, nil
}

func printTranslations(outputs []TranslateOutput, jsonOutput bool, log zerolog.Logger) error {
	if jsonOutput {
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	var b strings.Builder
	for i, out := range outputs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n", out.FileName)
		b.WriteString("Extracted text:\n")
		b.WriteString(out.Extracted)
		b.WriteString("\n")
		if out.Translated != "" {
			fmt.Fprintf(&b, "\n%s translation:\n%s\n", out.Language, out.Translated)
		}
		if out.DownloadFile != "" {
			fmt.Fprintf(&b, "Saved: %s\n", out.DownloadFile)
		}
		if out.AudioFile != "" {
			fmt.Fprintf(&b, "Audio: %s\n", out.AudioFile)
		}
		for _, d := range out.Diagnostics {
			fmt.Fprintf(&b, "Warning: %s\n", d)
		}
	}
	_, err := os.Stdout.WriteString(b.String())
	return err
}
