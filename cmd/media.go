package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yumyai/strainmodel/pkg/media"
)

// mediaCmd represents the media command
var mediaCmd = &cobra.Command{
	Use:   "media [name]",
	Short: "List the available media and FBA specs, or show one medium",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMedia,
}

func init() {
	rootCmd.AddCommand(mediaCmd)
}

func runMedia(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := media.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, name := range reg.MediaNames() {
			fmt.Fprintf(out, "media\t%s\n", name)
		}
		for _, name := range reg.SpecNames() {
			fmt.Fprintf(out, "spec\t%s\n", name)
		}
		return nil
	}

	m, err := reg.Media(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"exchanges": m.Exchanges})
}
