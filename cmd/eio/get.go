package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
)

var (
	getOutput   string
	getStdout   bool
	getTransfer transferFlags
)

var getCmd = &cobra.Command{
	Use:   "get <id> [local-path]",
	Short: "Download an object",
	Long: `Download an object by id.

The object is written to local-path, or to a file named after the id when
no path is given. Use --stdout (or "-" as the path) to stream to stdout.

Examples:
  eio get 3f2a9c report.csv
  eio get --stdout 3f2a9c | jq .
  eio get --gzip --encrypt-key "$KEY" 3f2a9c backup.tar`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file path")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write to stdout")
	getTransfer.register(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	id := args[0]

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if getOutput != "" {
		localPath = getOutput
	}
	if getStdout {
		localPath = "-"
	}

	formatter, err := getFormatter()
	if err != nil {
		return err
	}

	client, err := getClient(cmd, getTransfer.options()...)
	if err != nil {
		return err
	}

	result, body, err := client.Download(cmd.Context(), clientcli.DownloadOptions{
		ID:        id,
		LocalPath: localPath,
	})
	if err != nil {
		return err
	}

	if body != nil {
		defer func() { _ = body.Close() }()
		written, copyErr := io.Copy(os.Stdout, body)
		if copyErr != nil {
			return copyErr
		}
		result.Size = written
		// stdout carries the content, so the summary goes to stderr
		return formatter.FormatDownload(os.Stderr, result)
	}

	return formatter.FormatDownload(os.Stdout, result)
}
