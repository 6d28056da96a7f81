package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
)

// uploadFlags are shared by put and post.
type uploadFlags struct {
	transferFlags
	contentType string
	ttl         time.Duration
	meta        []string
	query       []string
}

func (f *uploadFlags) register(cmd *cobra.Command) {
	f.transferFlags.register(cmd)
	cmd.Flags().StringVarP(&f.contentType, "content-type", "t", "", "override content-type")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 0, "expiry hint, rounded up to whole seconds")
	cmd.Flags().StringArrayVar(&f.meta, "meta", nil, "metadata key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.query, "query", nil, "queryable tag key=value (repeatable)")
}

var (
	putFlags  uploadFlags
	postFlags uploadFlags
)

var putCmd = &cobra.Command{
	Use:   "put <id> <local-path>",
	Short: "Create or replace an object with a known id",
	Long: `Create or replace the object with the given id.

Use "-" as local-path to read standard input.

Examples:
  eio put invoices-2026 ./invoices.pdf
  eio put --query tenant=acme --ttl 24h cache-key ./blob.bin
  tar c dir | eio put --gzip backup -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd, &putFlags, args[0], args[1])
	},
}

var postCmd = &cobra.Command{
	Use:   "post <local-path>",
	Short: "Create an object with a server-assigned id",
	Long: `Create a new object. The service assigns the id, which is printed.

Use "-" as local-path to read standard input.

Examples:
  eio post ./photo.jpg
  eio post --meta author=ops --query tenant=acme ./report.csv
  echo hello | eio post -q -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd, &postFlags, "", args[0])
	},
}

func init() {
	putFlags.register(putCmd)
	postFlags.register(postCmd)
}

func runUpload(cmd *cobra.Command, f *uploadFlags, id, localPath string) error {
	meta, err := clientcli.ParsePairs(f.meta)
	if err != nil {
		return err
	}
	query, err := clientcli.ParsePairs(f.query)
	if err != nil {
		return err
	}

	formatter, err := getFormatter()
	if err != nil {
		return err
	}

	client, err := getClient(cmd, f.options()...)
	if err != nil {
		return err
	}

	result, err := client.Upload(cmd.Context(), clientcli.UploadOptions{
		LocalPath:   localPath,
		ID:          id,
		ContentType: f.contentType,
		TTL:         f.ttl,
		Meta:        meta,
		Query:       query,
	})
	if err != nil {
		return err
	}

	return formatter.FormatUpload(os.Stdout, result)
}
