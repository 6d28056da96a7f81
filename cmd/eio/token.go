package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
	"github.com/sagarc03/eiostore/config"
)

var (
	tokenClaimsJSON string
	tokenClaims     []string
	tokenTTL        time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token from claims",
	Long: `Mint an HS256 bearer token signed with the configured secret.

The token can be handed to callers that hold no secret and used with --token
or EIO_TOKEN.

Examples:
  eio token --claim sub=reader --ttl 1h
  eio token --claims '{"sub":"svc","scope":["read"]}'`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClaimsJSON, "claims", "", "claims as a JSON object")
	tokenCmd.Flags().StringArrayVar(&tokenClaims, "claim", nil, "string claim key=value (repeatable)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "sets the exp claim relative to now")
}

func runToken(cmd *cobra.Command, _ []string) error {
	claims := make(map[string]any)
	if tokenClaimsJSON != "" {
		if err := json.Unmarshal([]byte(tokenClaimsJSON), &claims); err != nil {
			return fmt.Errorf("parse claims: %w", err)
		}
	}
	pairs, err := clientcli.ParsePairs(tokenClaims)
	if err != nil {
		return err
	}
	for k, v := range pairs {
		claims[k] = v
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	conn, err := connection(cfg)
	if err != nil {
		return err
	}

	token, err := clientcli.SignToken(conn, claims)
	if err != nil {
		return err
	}

	formatter, err := getFormatter()
	if err != nil {
		return err
	}
	return formatter.FormatToken(os.Stdout, token)
}
