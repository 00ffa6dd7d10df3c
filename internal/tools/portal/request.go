package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/learning-portal-client/internal/app"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
)

type requestFlags struct {
	query []string
	data  string
	file  string
	field string
}

func newRequestCommand(opts *options) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Call the remote API through the authenticated gateway",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			path := args[1]
			reqOpts, err := buildRequestOptions(flags)
			if err != nil {
				return report(cmd, opts, "portal request", nil, err)
			}
			var body json.RawMessage
			err = withApp(cmd, opts, "portal request "+method+" "+path, func(ctx context.Context, a *app.App) ([]string, error) {
				if _, err := a.Store.LoadDurable(ctx); err != nil {
					return nil, err
				}
				raw, err := a.Gateway.Request(ctx, method, path, reqOpts)
				if err != nil {
					return nil, err
				}
				body = raw
				details := []string{fmt.Sprintf("%d bytes", len(raw))}
				if opts.ci && len(raw) > 0 {
					details = append(details, string(raw))
				}
				return details, nil
			})
			if err == nil && !opts.ci && len(body) > 0 {
				writePretty(cmd.OutOrStdout(), body)
			}
			return err
		},
	}
	cmd.Flags().StringArrayVar(&flags.query, "query", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&flags.data, "data", "", "JSON request body")
	cmd.Flags().StringVar(&flags.file, "file", "", "send this file as multipart/form-data")
	cmd.Flags().StringVar(&flags.field, "field", "file", "form field name for --file")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	return cmd
}

func buildRequestOptions(flags *requestFlags) (gateway.RequestOptions, error) {
	var opts gateway.RequestOptions
	if len(flags.query) > 0 {
		opts.Query = url.Values{}
		for _, kv := range flags.query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return opts, fmt.Errorf("query %q must be key=value", kv)
			}
			opts.Query.Add(k, v)
		}
	}
	switch {
	case flags.data != "":
		if !json.Valid([]byte(flags.data)) {
			return opts, fmt.Errorf("--data is not valid JSON")
		}
		opts.Body = json.RawMessage(flags.data)
	case flags.file != "":
		body, contentType, err := multipartFile(flags.field, flags.file)
		if err != nil {
			return opts, err
		}
		opts.Body = body
		opts.Binary = true
		opts.ContentType = contentType
	}
	return opts, nil
}

func multipartFile(field, path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func writePretty(w io.Writer, raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, _ = w.Write(raw)
		return
	}
	out.WriteByte('\n')
	_, _ = out.WriteTo(w)
}
