package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/mosaico/annotation"
)

var jobs uint

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mosaico",
	Short: "Label map patches, one at a time, with their surroundings",
	Long: strings.TrimSpace(`
Walk an annotator through a shuffled queue of unlabeled image patches, showing
each one in the context of its neighbours, and keep every label in a per-user,
per-task file that is picked up again on the next run.
    `),
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().UintVarP(&jobs, "jobs", "j", 1, "Amount of concurrent image readers when loading patch files")
}

// loadSessionConfig reads the config file and applies the command line overrides
func loadSessionConfig(cmd *cobra.Command, configFile string) (*annotation.Config, error) {
	config, err := annotation.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("username") {
		config.Username, _ = flags.GetString("username")
	}
	if flags.Changed("task") {
		config.TaskName, _ = flags.GetString("task")
	}
	if flags.Changed("annotations-dir") {
		config.AnnotationsDir, _ = flags.GetString("annotations-dir")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("username", "u", "", "Annotator name, overrides the config file")
	cmd.Flags().StringP("task", "t", "", "Task name, overrides the config file")
	cmd.Flags().String("annotations-dir", "", "Directory of the session files, overrides the config file")
}

func openSession(cmd *cobra.Command, config *annotation.Config) (*annotation.Session, error) {
	loader := &annotation.DirectoryLoader{Jobs: int(jobs)}
	return annotation.OpenSession(cmd.Context(), config, loader, annotation.Options{})
}
