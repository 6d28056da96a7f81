// Package clientcli provides the command-line layer over the eiostore client.
//
// It supports upload, download, delete, find and token operations, with
// optional gzip compression and stream encryption. The package includes
// profile-based configuration for managing connections to multiple services.
//
// # Basic Usage
//
// Create a client and upload a file:
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:8080",
//		Secret:   "shared-secret",
//	}
//
//	client, err := clientcli.New(cfg, clientcli.WithGzip())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath: "./report.csv",
//		Query:     map[string]string{"tenant": "acme"},
//	})
//
// # Profile Configuration
//
// Use profiles to manage multiple service configurations:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable, JSON or YAML output:
//
//	formatter, err := clientcli.NewFormatter(clientcli.FormatYAML, quiet)
//	formatter.FormatUpload(os.Stdout, result)
package clientcli
