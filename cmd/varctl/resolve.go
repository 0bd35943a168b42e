package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/dashboard"
	"github.com/goliatone/go-templating/pkg/activity"
	"github.com/goliatone/go-templating/pkg/activity/natssink"
	"github.com/goliatone/go-templating/pkg/state"
	"github.com/goliatone/go-templating/templatefetch"
)

type resolveOptions struct {
	file        string
	datasources string
	url         string
	save        bool
	jsonOutput  bool
	logLevel    string
}

func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the variables of a dashboard file",
		Long: `Resolve loads a dashboard file, resolves its variables against the
configured datasources and prints each variable with its current value,
followed by the var-<name> URL parameters of the selection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "dashboard file (.json or .yaml)")
	cmd.Flags().StringVarP(&opts.datasources, "datasources", "d", "", "TOML datasource configuration")
	cmd.Flags().StringVar(&opts.url, "url", "", "URL query to apply, e.g. 'var-region=eu'")
	cmd.Flags().BoolVar(&opts.save, "save", false, "write the resolved selection back to the file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type variableOutput struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Status  string   `json:"status"`
	Text    string   `json:"text"`
	Value   string   `json:"value"`
	Options []string `json:"options,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type resolveOutput struct {
	Dashboard string           `json:"dashboard"`
	Variables []variableOutput `json:"variables"`
	Query     string           `json:"query"`
}

func runResolve(ctx context.Context, opts *resolveOptions, stdout, stderr io.Writer) error {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "varctl",
		Level:  hclog.LevelFromString(opts.logLevel),
		Output: stderr,
	})

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}
	doc, err := dashboard.Parse(opts.file, data)
	if err != nil {
		return err
	}
	if doc.UID == "" {
		doc.UID = strings.TrimSuffix(filepath.Base(opts.file), filepath.Ext(opts.file))
	}
	cfg, err := loadConfig(opts.datasources)
	if err != nil {
		return err
	}

	serviceOpts := []templating.ServiceOption{
		templating.WithLogger(logger),
		templating.WithDashboard(doc.UID),
		templating.WithDatasources(cfg.provider()),
	}
	if cfg.TemplateServer != "" {
		client, err := templatefetch.New(cfg.TemplateServer, templatefetch.WithLogger(logger))
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, templating.WithTemplateFetcher(client))
	}
	hooks := activity.Hooks{activity.HookFunc(func(_ context.Context, event activity.Event) error {
		logger.Debug("activity", "verb", event.Verb, "object", event.ObjectID)
		return nil
	})}
	if cfg.NATSURL != "" {
		hook, err := natssink.Connect(cfg.NATSURL, cfg.NATSPrefix)
		if err != nil {
			return err
		}
		defer hook.Close()
		if len(cfg.NATSVerbs) > 0 {
			hooks = append(hooks, activity.OnlyVerbs(hook, cfg.NATSVerbs...))
		} else {
			hooks = append(hooks, hook)
		}
	}
	serviceOpts = append(serviceOpts, templating.WithActivity(activity.NewEmitter(hooks, activity.Config{Enabled: true})))

	repo := dashboard.NewRepository(state.NewMemoryStore[dashboard.Document]())
	ref, _, err := dashboard.Create(ctx, repo, doc)
	if err != nil {
		return err
	}
	session, err := dashboard.Open(ctx, repo, ref, templating.NewService(nil, serviceOpts...))
	if err != nil {
		return err
	}
	if err := session.LoadErr(); err != nil {
		logger.Warn("variables disabled", "error", err)
	}

	if opts.url != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(opts.url, "?"))
		if err != nil {
			return fmt.Errorf("parsing --url: %w", err)
		}
		if err := session.ApplyURL(ctx, values); err != nil {
			return err
		}
	}

	out := resolveOutput{Dashboard: doc.UID, Query: session.URLValues().Encode()}
	for _, v := range session.Service().Variables() {
		item := variableOutput{
			Name:   v.Name,
			Type:   v.Type,
			Status: v.Status.String(),
			Text:   v.Selection.Current.Text,
			Value:  v.Selection.Current.Value,
		}
		for _, option := range v.Selection.Options {
			item.Options = append(item.Options, option.Value)
		}
		if v.Err != nil {
			item.Error = v.Err.Error()
		}
		out.Variables = append(out.Variables, item)
	}

	if opts.save {
		saved, err := session.Save(ctx)
		if err != nil {
			return err
		}
		formatted, err := dashboard.Format(opts.file, saved)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.file, formatted, 0o644); err != nil {
			return err
		}
		logger.Info("dashboard saved", "file", opts.file, "version", saved.Version)
	}

	if opts.jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}
	return printResolve(stdout, out)
}

func printResolve(w io.Writer, out resolveOutput) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSTATUS\tVALUE")
	for _, v := range out.Variables {
		value := v.Text
		if v.Error != "" {
			value = v.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Type, v.Status, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n?%s\n", out.Query)
	return err
}
