package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
)

var (
	deleteConcurrency int
	deleteManyQuery   []string
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "Delete objects",
	Long: `Delete one or more objects by id. Deletes run in parallel.

Examples:
  eio delete 3f2a9c
  eio delete a b c --concurrency 8
  eio delete -q temp-1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var deleteManyCmd = &cobra.Command{
	Use:   "delete-many --query key=value [--query key=value...]",
	Short: "Delete every object matching query tags",
	Long: `Delete every object whose queryable tags match all the given pairs.

At least one --query pair is required.

Examples:
  eio delete-many --query tenant=acme
  eio delete-many --query tenant=acme --query kind=cache`,
	Args: cobra.NoArgs,
	RunE: runDeleteMany,
}

func init() {
	deleteCmd.Flags().IntVar(&deleteConcurrency, "concurrency", clientcli.DefaultConcurrency, "parallel deletes")
	deleteManyCmd.Flags().StringArrayVar(&deleteManyQuery, "query", nil, "queryable tag key=value (repeatable)")
}

func runDelete(cmd *cobra.Command, args []string) error {
	formatter, err := getFormatter()
	if err != nil {
		return err
	}

	client, err := getClient(cmd, clientcli.WithConcurrency(deleteConcurrency))
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), args)
	if err != nil {
		return err
	}

	if err := formatter.FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	// Return error if any deletes failed
	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}

func runDeleteMany(cmd *cobra.Command, _ []string) error {
	query, err := clientcli.ParsePairs(deleteManyQuery)
	if err != nil {
		return err
	}

	client, err := getClient(cmd)
	if err != nil {
		return err
	}

	return client.DeleteMany(cmd.Context(), query)
}
