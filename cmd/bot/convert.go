package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memohai/sticker-export-bot/internal/convert"
	"github.com/memohai/sticker-export-bot/internal/logger"
)

func newConvertCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a sticker file on disk to PNG or GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			input := args[0]
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			converter := convert.NewConverter(logger.L, convert.NewFFmpegTranscoder(cfg.Export.FFmpegPath), cfg.Export.TempDir)
			detection := convert.Detect(data)
			converted, err := converter.Convert(cmd.Context(), data, detection)
			if err != nil {
				return err
			}

			target := output
			if target == "" {
				target = outputPath(input, converted.Ext)
			}
			if err := os.WriteFile(target, converted.Data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s\n", input, detection.MIME, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: input name with the converted extension)")
	return cmd
}

func outputPath(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}
