package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pitabwire/modeltranslation"
	"github.com/pitabwire/modeltranslation/schemasync"
)

const minArgsCommand = 2

var errOutOfSync = errors.New("translation columns are missing")

func main() {
	if len(os.Args) < minArgsCommand {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{in: bufio.NewReader(os.Stdin), out: os.Stdout}

	var err error
	switch os.Args[1] {
	case "list":
		err = c.cmdList(ctx, os.Args[2:])
	case "check":
		err = c.cmdCheck(ctx, os.Args[2:])
	case "sync":
		err = c.cmdSync(ctx, os.Args[2:])
	case "update":
		err = c.cmdUpdate(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		usage(os.Stdout)
		os.Exit(1)
	}
	exitOnErr(err)
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "modeltranslation <command> [args]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  list   [--manifests DIR] [--units a,b]             registered models and their translation fields")
	fmt.Fprintln(out, "  check  [--manifests DIR] [--units a,b]             report translation columns missing from the database")
	fmt.Fprintln(out, "  sync   [--manifests DIR] [--units a,b] [--noinput] add missing translation columns")
	fmt.Fprintln(out, "  update [--manifests DIR] [--units a,b] [model ...] fill empty default language columns")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Languages and the database come from LANGUAGES, MODELTRANSLATION_DEFAULT_LANGUAGE and DATABASE_URL.")
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, errOutOfSync) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

type cli struct {
	in  *bufio.Reader
	out io.Writer

	// extra service options, used by tests
	opts []modeltranslation.Option
}

type commonFlags struct {
	manifests string
	units     string
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.manifests, "manifests", "", "directory holding <unit>/translation.yaml, defaults to MODELTRANSLATION_MANIFEST_DIR")
	fs.StringVar(&f.units, "units", "", "comma separated units to discover, defaults to every manifest found")
}

// service builds and discovers the translation service described by flags.
func (c *cli) service(
	ctx context.Context,
	flags commonFlags,
	withDatastore bool,
) (context.Context, *modeltranslation.Service, error) {
	opts := append([]modeltranslation.Option{}, c.opts...)
	if flags.manifests != "" {
		opts = append(opts, modeltranslation.WithManifestDir(flags.manifests))
	}
	if flags.units != "" {
		opts = append(opts, modeltranslation.WithUnits(splitList(flags.units)...))
	}
	if withDatastore {
		opts = append(opts, modeltranslation.WithDatastore())
	}

	ctx, svc, err := modeltranslation.NewService(ctx, "modeltranslation", opts...)
	if err != nil {
		return ctx, nil, err
	}

	if _, err = svc.Discover(ctx); err != nil {
		svc.Close(ctx)
		return ctx, nil, err
	}
	return ctx, svc, nil
}

func (c *cli) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, err := c.service(ctx, flags, false)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	reg := svc.Registry()
	models := reg.Models()
	if len(models) == 0 {
		fmt.Fprintln(c.out, "No models registered for translation")
		return nil
	}

	for _, modelID := range models {
		opts, optsErr := reg.GetOptions(modelID)
		if optsErr != nil {
			return optsErr
		}

		fmt.Fprintln(c.out, modelID)
		for _, base := range opts.Fields() {
			fmt.Fprintf(c.out, "  %s -> %s\n", base, strings.Join(opts.LocalizedFieldNames(base), ", "))
		}
	}
	return nil
}

func (c *cli) cmdCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, err := c.service(ctx, flags, true)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	report, err := svc.InspectSchema(ctx)
	if err != nil {
		return err
	}

	for _, plan := range report.Models {
		c.printPlan(plan)
	}

	if report.InSync() {
		fmt.Fprintln(c.out, "\nNo new translatable fields detected")
		return nil
	}
	return errOutOfSync
}

func (c *cli) cmdSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	noInput := fs.Bool("noinput", false, "do not prompt before executing statements")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, err := c.service(ctx, flags, true)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	report, err := svc.SyncSchema(ctx, &promptConfirmer{cli: c, interactive: !*noInput})
	if err != nil {
		return err
	}

	for _, plan := range report.Models {
		switch {
		case plan.TableMissing:
			c.printPlan(plan)
		case len(plan.Statements) == 0:
		case plan.Executed:
			fmt.Fprintf(c.out, "SQL for %q executed\n", plan.ModelID)
		default:
			fmt.Fprintf(c.out, "SQL for %q not executed\n", plan.ModelID)
		}
	}

	if report.InSync() {
		fmt.Fprintln(c.out, "\nNo new translatable fields detected")
	}
	return nil
}

func (c *cli) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, err := c.service(ctx, flags, true)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	fmt.Fprintln(c.out, "Using default language:", svc.Resolver().Default())

	results, err := svc.UpdateFields(ctx, fs.Args()...)
	for _, result := range results {
		fmt.Fprintf(c.out, "Updating data of model '%s'\n", result.ModelID)
		if result.Err != nil {
			fmt.Fprintf(c.out, "  failed: %v\n", result.Err)
			continue
		}
		for field, rows := range result.Rows {
			fmt.Fprintf(c.out, "  %s: %d rows\n", field, rows)
		}
	}
	return err
}

func (c *cli) printPlan(plan schemasync.ModelPlan) {
	if plan.TableMissing {
		fmt.Fprintf(c.out, "\nTable %q of model %q does not exist\n", plan.Table, plan.ModelID)
		return
	}

	for _, drift := range plan.Drift {
		fmt.Fprintf(c.out, "\nMissing languages in %q field from %q model: %s\n",
			drift.BaseField, plan.ModelID, strings.Join(drift.MissingLanguages, ", "))
	}
}

// promptConfirmer shows the statements planned for a model and, when interactive, asks for a
// y/n answer. An empty answer or end of input declines.
type promptConfirmer struct {
	cli         *cli
	interactive bool
}

func (p *promptConfirmer) Confirm(_ context.Context, plan schemasync.ModelPlan) (bool, error) {
	out := p.cli.out
	p.cli.printPlan(plan)

	fmt.Fprintf(out, "\nSQL to synchronize %q schema:\n", plan.ModelID)
	for _, stmt := range plan.Statements {
		fmt.Fprintf(out, "   %s\n", stmt.SQL)
	}

	if !p.interactive {
		return true, nil
	}

	for {
		fmt.Fprint(out, "\nAre you sure that you want to execute the previous SQL: (y/n) [n]: ")

		line, err := p.cli.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			fmt.Fprintln(out, "Please answer yes or no")
		}
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
