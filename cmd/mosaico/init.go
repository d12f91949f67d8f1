package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lewtec/mosaico/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample session configuration",
	Long: `Create a sample configuration file to edit before annotating.

Example:
  mosaico init --patch-paths './patches/*.png' --config config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		patchPaths, _ := cmd.Flags().GetString("patch-paths")

		if _, err := os.Stat(configFile); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists: %s\n", configFile)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Creating sample configuration file: %s\n", configFile)
		if err := createSampleConfig(configFile, patchPaths); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if _, err := annotation.LoadConfig(configFile); err != nil {
			return fmt.Errorf("sample config does not load: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
		fmt.Fprintln(cmd.OutOrStdout(), "  1. Review and customize your config file:", configFile)
		fmt.Fprintln(cmd.OutOrStdout(), "  2. Start the annotation server:")
		fmt.Fprintf(cmd.OutOrStdout(), "     mosaico annotate %s\n", configFile)
		fmt.Fprintln(cmd.OutOrStdout(), "\nThen open http://localhost:8080 in your browser")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringP("config", "c", "config.yaml", "Configuration file to create")
	initCmd.Flags().StringP("patch-paths", "p", "./patches/*.png", "Glob of the patch files to annotate")
}

func createSampleConfig(filename, patchPaths string) error {
	sampleConfig := fmt.Sprintf(`# mosaico configuration file

meta:
  description: |
    Sample annotation project.
    Edit this description to explain what you're annotating.

# Patches named patch-{minx}-{miny}-{maxx}-{maxy}-#{parent}#.{ext}
patch_paths: %q
# parent_paths: "./maps/*.png"
# metadata_path: "./maps/metadata.csv"

# Or a table of patches instead (with image_path, parent_id and pixel_bounds)
# patch_df: "./patch_df.csv"
# parent_df: "./parent_df.csv"

labels:
  - "no"
  - "rail"

task_name: railspace
# username: alice
annotations_dir: ./annotations
auto_save: true

# Show the surrounding patches, dimmed, around the one being labelled
show_context: true
surrounding: 1
max_size: 1000

# Only queue patches within these bounds, inclusive
# min_values:
#   mean_pixel_R: 0.1
# max_values:
#   mean_pixel_R: 0.9

# sortby: min_x
# ascending: true

# How labels of older session files are read: auto, labels or indices
label_format: auto
`, patchPaths)

	return os.WriteFile(filename, []byte(sampleConfig), 0644)
}
