package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
)

var findQuery []string

var findCmd = &cobra.Command{
	Use:   "find --query key=value [--query key=value...]",
	Short: "List objects matching query tags",
	Long: `List the objects whose queryable tags match all the given pairs.

Examples:
  eio find --query tenant=acme
  eio find --query tenant=acme -f json | jq '.items[].id'`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringArrayVar(&findQuery, "query", nil, "queryable tag key=value (repeatable)")
}

func runFind(cmd *cobra.Command, _ []string) error {
	query, err := clientcli.ParsePairs(findQuery)
	if err != nil {
		return err
	}

	formatter, err := getFormatter()
	if err != nil {
		return err
	}

	client, err := getClient(cmd)
	if err != nil {
		return err
	}

	result, err := client.Find(cmd.Context(), query)
	if err != nil {
		return err
	}

	return formatter.FormatFind(os.Stdout, result)
}
