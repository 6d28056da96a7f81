package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore/clientcli"
	"github.com/sagarc03/eiostore/config"
)

// transferFlags are the pipeline flags shared by get, put and post.
type transferFlags struct {
	gzip       bool
	encryptKey string
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.gzip, "gzip", false, "gzip the stream (uploads) or gunzip it (downloads)")
	cmd.Flags().StringVar(&f.encryptKey, "encrypt-key", "", "passphrase for stream encryption (env: EIO_ENCRYPT_KEY)")
}

func (f *transferFlags) options() []clientcli.Option {
	var opts []clientcli.Option
	if f.gzip {
		opts = append(opts, clientcli.WithGzip())
	}
	key := f.encryptKey
	if key == "" {
		key = os.Getenv("EIO_ENCRYPT_KEY")
	}
	if key != "" {
		opts = append(opts, clientcli.WithEncryption(key))
	}
	return opts
}

// profilesFile returns the profile file path from flags, env or the default.
func profilesFile() string {
	if profilesPath != "" {
		return profilesPath
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// connection merges the selected profile with settings from config files,
// environment and flags (later sources take precedence).
func connection(cfg *config.Config) (*clientcli.Config, error) {
	var configs []*clientcli.Config

	name := profileName
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	path := profilesFile()
	if path != "" {
		file, err := clientcli.LoadConfigFile(path)
		switch {
		case err == nil:
			p, perr := file.GetProfile(name)
			if perr != nil && (name != "" || !errors.Is(perr, clientcli.ErrNoProfiles)) {
				return nil, perr
			}
			configs = append(configs, clientcli.ConfigFromProfile(p))
		case name != "" || profilesPath != "":
			// Only error if a profile or file was explicitly requested
			return nil, err
		}
	}

	configs = append(configs, &clientcli.Config{
		Endpoint: cfg.URI,
		Secret:   cfg.Secret,
		Token:    cfg.Token,
	})

	return clientcli.MergeConfig(configs...), nil
}

// getClient builds a client from the loaded configuration.
func getClient(cmd *cobra.Command, opts ...clientcli.Option) (*clientcli.Client, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return nil, err
	}

	conn, err := connection(cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.ValidateWithAuth(); err != nil {
		return nil, err
	}

	// Credentials come from conn so a profile secret is not overridden by an
	// empty config value.
	cfgNoCreds := *cfg
	cfgNoCreds.Secret, cfgNoCreds.Token = "", ""

	all := append([]clientcli.Option{
		clientcli.WithStoreOptions(cfgNoCreds.ClientOptions(slog.Default())...),
	}, opts...)

	client, err := clientcli.New(conn, all...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	slog.Debug("client ready", "endpoint", conn.WithDefaults().Endpoint, "client", client)
	return client, nil
}

// getFormatter returns the formatter selected by --format.
func getFormatter() (clientcli.Formatter, error) {
	return clientcli.NewFormatter(outputFormat, quiet)
}
