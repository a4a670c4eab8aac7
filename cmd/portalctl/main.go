package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mesikahq/luxe-portal/internal/audit"
	"github.com/mesikahq/luxe-portal/internal/config"
	"github.com/mesikahq/luxe-portal/internal/contact"
)

var version = "dev"

var errInvalid = errors.New("contact number is invalid")

// CLI is the top-level command structure for portalctl.
type CLI struct {
	Version    kong.VersionFlag `help:"Show version." short:"V"`
	ConfigFile string           `help:"Config file to use instead of the search path." name:"config-file" type:"path"`

	Contact ContactCmd `cmd:"" help:"Format and check contact numbers the way the portal does."`
	Config  ConfigCmd  `cmd:"" help:"Inspect the effective configuration."`
	Audit   AuditCmd   `cmd:"" help:"Read the audit trail from Elasticsearch."`
}

type ContactCmd struct {
	Format   ContactFormatCmd   `cmd:"" help:"Render a number in display form."`
	Validate ContactValidateCmd `cmd:"" help:"Check a number against the rule set."`
	Wire     ContactWireCmd     `cmd:"" help:"Convert a valid number to wire form."`
}

// RuleSetOption selects a contact rule set; empty means the configured one.
type RuleSetOption struct {
	RuleSet string `help:"Contact rule set (domestic or international)." name:"rule-set"`
}

func (o RuleSetOption) rules(a *app) (contact.RuleSet, error) {
	if o.RuleSet != "" {
		return contact.ParseRuleSet(o.RuleSet)
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ContactRuleSet(), nil
}

type ContactFormatCmd struct {
	RuleSetOption `embed:""`
	Value         string `arg:"" help:"Number as typed."`
}

func (c *ContactFormatCmd) Run(a *app) error {
	rules, err := c.rules(a)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, rules.Format(c.Value))
	return nil
}

type ContactValidateCmd struct {
	RuleSetOption `embed:""`
	Value         string `arg:"" optional:"" help:"Number as typed."`
}

func (c *ContactValidateCmd) Run(a *app) error {
	rules, err := c.rules(a)
	if err != nil {
		return err
	}
	res := rules.Validate(c.Value)
	if !res.Valid() {
		fmt.Fprintf(a.out, "invalid (%s): %s\n", res.Kind, res.Message)
		return errInvalid
	}
	fmt.Fprintln(a.out, "valid")
	return nil
}

type ContactWireCmd struct {
	RuleSetOption `embed:""`
	Value         string `arg:"" help:"Number as typed."`
}

func (c *ContactWireCmd) Run(a *app) error {
	rules, err := c.rules(a)
	if err != nil {
		return err
	}
	if res := rules.Validate(c.Value); !res.Valid() {
		return fmt.Errorf("%w: %s", errInvalid, res.Message)
	}
	fmt.Fprintln(a.out, rules.ToWireFormat(c.Value))
	return nil
}

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration with secrets masked."`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(a *app) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = a.out.Write(out)
	return err
}

type AuditCmd struct {
	Recent AuditRecentCmd `cmd:"" help:"List the most recent audit events."`
}

type AuditRecentCmd struct {
	Size     int           `help:"Number of events." default:"20"`
	User     string        `help:"Only events by this user."`
	Resource string        `help:"Only events on this resource (patient, session)."`
	Timeout  time.Duration `help:"Query timeout." default:"10s"`
}

func (c *AuditRecentCmd) Run(a *app) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	es := cfg.Audit.Elasticsearch
	if !es.Enabled {
		return audit.ErrSearchDisabled
	}
	client, err := audit.NewElasticsearchClient(audit.ElasticsearchConfig{
		Addresses: es.Addresses,
		Username:  es.Username,
		Password:  es.Password,
	})
	if err != nil {
		return err
	}

	filters := map[string]interface{}{}
	if c.User != "" {
		filters["user_id"] = c.User
	}
	if c.Resource != "" {
		filters["resource"] = c.Resource
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	svc := audit.NewService(client, nil, es.IndexPrefix)
	events, err := svc.QueryEvents(ctx, filters, 0, c.Size)
	if err != nil {
		return fmt.Errorf("audit query: %w", err)
	}
	return printEvents(a.out, events)
}

func printEvents(w io.Writer, events []audit.AuditEvent) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tUSER\tRESOURCE\tID\tSTATUS")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Format(time.RFC3339), ev.EventType, ev.UserID, ev.Resource, ev.ResourceID, ev.Status)
	}
	return tw.Flush()
}

// app is bound into every command's Run.
type app struct {
	out        io.Writer
	configFile string
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configFile != "" {
		return config.LoadFile(a.configFile)
	}
	return config.Load()
}

func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("portalctl"),
		kong.Description("Operator tool for the Luxe patient portal."),
		kong.UsageOnError(),
		kong.Writers(out, out),
		kong.Vars{"version": version},
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&app{out: out, configFile: cli.ConfigFile})
}

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "portalctl:", err)
		os.Exit(1)
	}
}
