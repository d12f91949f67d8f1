package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lewtec/mosaico/annotation"
)

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate config.yaml",
	Short: "Start the annotation web server",
	Long: `Start the annotation web server for the session described by the config file.

The session resumes the labels of any previous run with the same patches,
username and task. Labels are saved after every click unless auto_save is off.

Examples:
  # Label patches
  mosaico annotate config.yaml

  # Label the surroundings of patches instead
  mosaico annotate config.yaml --context -u alice
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := args[0]
		config, err := loadSessionConfig(cmd, configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		session, err := openSession(cmd, config)
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}

		contextMode, _ := cmd.Flags().GetBool("context")
		app := &annotation.AnnotatorApp{Session: session, Context: contextMode}
		if err := app.Start(); err != nil {
			return fmt.Errorf("failed to start annotating: %w", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		log.Printf("Configuration: %s", configFile)
		log.Printf("Session: %s (%d patches)", session.Filename(), session.Store().Len())
		log.Printf("Labels: %v", session.Vocabulary())
		log.Printf("Starting server on: %s", addr)
		return serve(cmd.Context(), addr, app.GetHTTPHandler())
	},
}

// serve runs the server until ctx is done
func serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("Listening on: http://%s", listener.Addr())
	server := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(annotateCmd)

	addSessionFlags(annotateCmd)
	annotateCmd.Flags().Bool("context", false, "Annotate the context of patches (writes context_label)")
	annotateCmd.Flags().StringP("addr", "a", ":8080", "Address to bind the webserver")
}
