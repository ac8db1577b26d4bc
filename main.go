package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppvolto/apollo-upload-client/config"
	"github.com/ppvolto/apollo-upload-client/extensions"
	"github.com/ppvolto/apollo-upload-client/uploadlink"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const version = "0.1.0"

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(ctx *cli.Context) error {
		fmt.Println(version)
		return nil
	},
}

var sendCmd = &cli.Command{
	Name:  "send",
	Usage: "execute a graphql operation against the configured endpoint",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file; searched upward from the working directory when omitted"},
		&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "file containing the operation, - for stdin", Value: "-"},
		&cli.StringFlag{Name: "operation", Aliases: []string{"o"}, Usage: "operation name"},
		&cli.StringSliceFlag{Name: "var", Usage: "variable as name=json"},
		&cli.StringSliceFlag{Name: "file", Usage: "upload variable as name=@path"},
		&cli.BoolFlag{Name: "persisted", Usage: "use automatic persisted queries"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log request dispatch"},
	},
	Action: send,
}

func send(c *cli.Context) error {
	logger := logrus.New()
	if c.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfgPath := c.String("config")
	if cfgPath == "" {
		var err error
		cfgPath, err = config.FindConfigFile(".", config.DefaultFilenames)
		if err != nil {
			return fmt.Errorf("failed to find config file: %w", err)
		}
	}
	cfg, err := config.Load(cfgPath, config.WithDotEnv(".env"))
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	var interceptors []uploadlink.Interceptor
	if c.Bool("persisted") {
		interceptors = append(interceptors, extensions.AutomaticPersistedQueries())
	}
	link, err := uploadlink.New(opts, interceptors...)
	if err != nil {
		return err
	}

	doc, err := readQuery(c.String("query"))
	if err != nil {
		return err
	}

	variables := map[string]any{}
	for _, kv := range c.StringSlice("var") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q, want name=json", kv)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("invalid json for variable %q: %w", name, err)
		}
		variables[name] = value
	}
	for _, kv := range c.StringSlice("file") {
		name, path, ok := strings.Cut(kv, "=@")
		if !ok {
			return fmt.Errorf("invalid --file %q, want name=@path", kv)
		}
		upload, closer, err := openUpload(path)
		if err != nil {
			return err
		}
		defer closer.Close()
		variables[name] = upload
	}

	res, err := link.Do(c.Context, uploadlink.Operation{
		OperationName: c.String("operation"),
		Document:      doc,
		Variables:     variables,
	}, nil)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	return nil
}

func readQuery(path string) (*ast.QueryDocument, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query: %w", err)
	}

	doc, parseErr := parser.ParseQuery(&ast.Source{Name: path, Input: string(b)})
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse query: %w", parseErr)
	}

	return doc, nil
}

func openUpload(path string) (uploadlink.Upload, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return uploadlink.Upload{}, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return uploadlink.Upload{}, nil, fmt.Errorf("failed to stat upload: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return uploadlink.Upload{
		File:        f,
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
	}, f, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "apollo-upload-client"
	app.Usage = "send GraphQL operations, with file uploads, over HTTP"
	app.HideVersion = true
	app.Commands = []*cli.Command{
		versionCmd,
		sendCmd,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err.Error())
		os.Exit(1)
	}
}
