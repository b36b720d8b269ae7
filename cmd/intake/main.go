// Command intake fills the registration form from a YAML draft, waits for
// the advisory ID check and submits it to the backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"guest-intake/intake"
	"guest-intake/intake/api"
	"guest-intake/intake/capture"
	"guest-intake/intake/submission"
	"guest-intake/intake/validation"
	"guest-intake/intake/verification"
	"guest-intake/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "intake:", err)
		os.Exit(1)
	}
}

type options struct {
	draft      string
	apiURL     string
	token      string
	minorIDAge int
	dryRun     bool
	timeout    time.Duration
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("intake", flag.ContinueOnError)
	fs.StringVar(&o.draft, "draft", "", "path to the YAML registration draft")
	fs.StringVar(&o.apiURL, "api", envOr("INTAKE_API_URL", "http://localhost:8080"), "backend base URL")
	fs.StringVar(&o.token, "token", os.Getenv("INTAKE_TOKEN"), "bearer token for the backend")
	fs.IntVar(&o.minorIDAge, "minor-id-age", validation.DefaultMinorIDAge, "age from which children need an ID")
	fs.BoolVar(&o.dryRun, "dry-run", false, "validate and verify only, do not submit")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.draft == "" {
		return o, errors.New("-draft is required")
	}
	return o, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// printNotifier shows notifications on the terminal.
type printNotifier struct{ out io.Writer }

func (n printNotifier) Success(msg string) { fmt.Fprintln(n.out, "OK:", msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintln(n.out, "ERROR:", msg) }

func run(ctx context.Context, args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	draft, err := LoadDraft(o.draft)
	if err != nil {
		return err
	}

	client := api.New(o.apiURL,
		api.WithTokenSource(api.StaticToken(o.token)),
		api.WithLogger(logger.Named("api")))
	cam := capture.NewFileCamera(nil)
	f := intake.New(client, cam,
		intake.WithLogger(logger),
		intake.WithNotifier(printNotifier{out: out}),
		intake.WithValidation(validation.WithMinorIDAge(o.minorIDAge)),
		intake.WithVerification(verification.WithStatusListener(func(st verification.State) {
			if st.Phase != verification.PhaseIdle {
				fmt.Fprintf(out, "ID check: %s %s\n", st.Phase, st.Message)
			}
		})),
		intake.WithOnRegistered(func(r api.RegisterResponse) {
			fmt.Fprintf(out, "registration %d reference %s\n", r.RegistrationID, r.Reference)
		}))
	defer f.Close()

	if err := draft.Apply(ctx, f, cam); err != nil {
		return err
	}
	f.WaitVerification()

	if o.dryRun {
		res := validation.Validate(f.Snapshot(), validation.WithMinorIDAge(o.minorIDAge))
		printErrors(out, res.Errors)
		if !res.Valid() {
			return errors.New(res.Summary())
		}
		fmt.Fprintln(out, "draft is valid")
		return nil
	}

	_, err = f.Submit(ctx)
	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		printErrors(out, verr.Result.Errors)
	}
	if err != nil {
		logger.Debug("submit failed", zap.Error(err))
	}
	return err
}

func printErrors(out io.Writer, errs map[string]string) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, errs[k])
	}
}
