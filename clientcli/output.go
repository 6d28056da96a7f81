package clientcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sagarc03/eiostore"
)

// Output formats accepted by NewFormatter.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, result UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatFind(w io.Writer, result *FindResult) error
	FormatToken(w io.Writer, token string) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the formatter for format. An empty format is human.
func NewFormatter(format string, quiet bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", FormatHuman:
		return &HumanFormatter{Quiet: quiet}, nil
	case FormatJSON:
		return &StructuredFormatter{encode: writeJSON}, nil
	case FormatYAML:
		return &StructuredFormatter{encode: writeYAML}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats an upload result as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, r UploadResult) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, r.ID)
		return nil
	}
	_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s)\n", r.LocalPath, r.ID, formatSize(r.Size))
	if r.MD5 != "" {
		_, _ = fmt.Fprintf(w, "  MD5: %s\n", r.MD5)
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.ID, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.ID, result.LocalPath, formatSize(result.Size))
	}
	if result.ContentType != "" {
		_, _ = fmt.Fprintf(w, "  Content-Type: %s\n", result.ContentType)
	}
	for _, k := range sortedKeys(result.Meta) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, result.Meta[k])
	}
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.ID, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.ID)
		}
	}
	return nil
}

// FormatFind formats find results as a table.
func (f *HumanFormatter) FormatFind(w io.Writer, result *FindResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No objects found")
		return nil
	}

	if f.Quiet {
		for i := range result.Items {
			_, _ = fmt.Fprintln(w, result.Items[i].ObjectID)
		}
		return nil
	}

	maxIDLen := 2 // "ID"
	for i := range result.Items {
		maxIDLen = max(maxIDLen, len(result.Items[i].ObjectID))
	}
	maxIDLen = min(maxIDLen, 60)

	_, _ = fmt.Fprintf(w, "%-*s  %10s  %-24s  %s\n", maxIDLen, "ID", "SIZE", "CONTENT TYPE", "CREATED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("-", maxIDLen), strings.Repeat("-", 10), strings.Repeat("-", 24), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		id := item.ObjectID
		if len(id) > maxIDLen {
			id = id[:maxIDLen-3] + "..."
		}
		created := "-"
		if !item.CreatedAt.IsZero() {
			created = item.CreatedAt.Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %-24s  %s\n",
			maxIDLen, id, formatSize(item.ContentLength), item.ContentType, created)
	}

	_, _ = fmt.Fprintf(w, "\n%d object(s) (%s total)\n", len(result.Items), formatSize(result.TotalSize()))
	return nil
}

// FormatToken writes the token on its own line.
func (f *HumanFormatter) FormatToken(w io.Writer, token string) error {
	_, err := fmt.Fprintln(w, token)
	return err
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxEndpointLen = max(maxEndpointLen, len(profiles[i].Endpoint))
	}
	maxNameLen = min(maxNameLen, 20)
	maxEndpointLen = min(maxEndpointLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "AUTH")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.Endpoint
		if len(endpoint) > maxEndpointLen {
			endpoint = endpoint[:maxEndpointLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n", marker, maxNameLen, name, maxEndpointLen, endpoint, authSummary(p, showSecrets))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Secret:   %s\n", maskSecret(profile.Secret, showSecrets))
	_, _ = fmt.Fprintf(w, "Token:    %s\n", maskSecret(profile.Token, showSecrets))
	return nil
}

// StructuredFormatter outputs JSON or YAML documents.
type StructuredFormatter struct {
	encode func(w io.Writer, v any) error
}

// objectView is an ObjectInfo with keys shared by the JSON and YAML output.
type objectView struct {
	ID            string            `json:"id" yaml:"id"`
	ContentType   string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ContentLength int64             `json:"size_bytes" yaml:"size_bytes"`
	MD5           string            `json:"md5,omitempty" yaml:"md5,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Meta          map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Query         map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
}

func newObjectView(info *eiostore.ObjectInfo) objectView {
	v := objectView{
		ID:            info.ObjectID,
		ContentType:   info.ContentType,
		ContentLength: info.ContentLength,
		MD5:           info.MD5,
		Meta:          info.Meta,
		Query:         info.Query,
	}
	if !info.CreatedAt.IsZero() {
		v.CreatedAt = info.CreatedAt.Format(time.RFC3339)
	}
	return v
}

// FormatUpload formats an upload result.
func (f *StructuredFormatter) FormatUpload(w io.Writer, result UploadResult) error {
	return f.encode(w, result)
}

// FormatDownload formats a download result.
func (f *StructuredFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return f.encode(w, result)
}

// FormatDelete formats delete results.
func (f *StructuredFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type entry struct {
		ID      string `json:"id" yaml:"id"`
		Deleted bool   `json:"deleted" yaml:"deleted"`
		Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	}

	output := struct {
		Results []entry `json:"results" yaml:"results"`
	}{
		Results: make([]entry, len(results)),
	}

	for i, r := range results {
		e := entry{ID: r.ID, Deleted: r.Deleted}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		output.Results[i] = e
	}

	return f.encode(w, output)
}

// FormatFind formats find results.
func (f *StructuredFormatter) FormatFind(w io.Writer, result *FindResult) error {
	output := struct {
		Items      []objectView `json:"items" yaml:"items"`
		TotalBytes int64        `json:"total_bytes" yaml:"total_bytes"`
	}{
		Items:      make([]objectView, len(result.Items)),
		TotalBytes: result.TotalSize(),
	}
	for i := range result.Items {
		output.Items[i] = newObjectView(&result.Items[i])
	}
	return f.encode(w, output)
}

// FormatToken formats a minted token.
func (f *StructuredFormatter) FormatToken(w io.Writer, token string) error {
	return f.encode(w, struct {
		Token string `json:"token" yaml:"token"`
	}{Token: token})
}

// FormatError formats an error with its classification when known.
func (f *StructuredFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error  string `json:"error" yaml:"error"`
		Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
		Status int    `json:"status,omitempty" yaml:"status,omitempty"`
	}{
		Error:  err.Error(),
		Status: eiostore.StatusOf(err),
	}
	var e *eiostore.Error
	if errors.As(err, &e) {
		output.Kind = e.Kind.String()
	}
	return f.encode(w, output)
}

// FormatProfileList formats a list of profiles.
func (f *StructuredFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []profileView `json:"profiles" yaml:"profiles"`
	}{
		Profiles: make([]profileView, len(profiles)),
	}
	for i := range profiles {
		output.Profiles[i] = newProfileView(&profiles[i], profiles[i].Name == defaultName, showSecrets)
	}
	return f.encode(w, output)
}

// FormatProfileShow formats a single profile.
func (f *StructuredFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return f.encode(w, newProfileView(&profile, isDefault, showSecrets))
}

type profileView struct {
	Name     string `json:"name" yaml:"name"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Secret   string `json:"secret,omitempty" yaml:"secret,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Default  bool   `json:"default" yaml:"default"`
}

func newProfileView(p *Profile, isDefault, showSecrets bool) profileView {
	return profileView{
		Name:     p.Name,
		Endpoint: p.Endpoint,
		Secret:   maskSecret(p.Secret, showSecrets),
		Token:    maskSecret(p.Token, showSecrets),
		Default:  isDefault,
	}
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML writes a value as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes < 0:
		return "unknown"
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func authSummary(p *Profile, showSecrets bool) string {
	switch {
	case p.Token != "":
		return "token " + maskSecret(p.Token, showSecrets)
	case p.Secret != "":
		return "secret " + maskSecret(p.Secret, showSecrets)
	default:
		return "(none)"
	}
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// An unset secret reads "(not set)" either way. If showSecrets is true,
// returns the original value. If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if secret == "" {
		return "(not set)"
	}
	if showSecrets {
		return secret
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
