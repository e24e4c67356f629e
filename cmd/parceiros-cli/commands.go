package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/auth"
	"parceiros/internal/core"
	"parceiros/internal/csvio"
	"parceiros/internal/store"
)

var errUsage = errors.New("usage")

type syncRunner interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) (int, error)
}

type app struct {
	store *store.Store
	out   io.Writer
	in    io.Reader
	now   func() time.Time
	sync  func(ctx context.Context, st *store.Store) (syncRunner, error)
}

const usage = `usage: parceiros-cli <command> [flags]

commands:
  partners                         list partners
  add-partner -name -username      add a partner (-commission, -bonus, -inactive)
  delete-partner -partner          delete a partner
  import -partner -file            import a transactions CSV
  export -partner [-out]           export the summary window as CSV
  summary [-partner] [-json]       show window summaries
  clients -partner                 list a partner's clients
  import-clients -partner -file    import a clients CSV
  export-clients -partner [-out]   export clients as CSV
  push | pull                      sync with the configured sheet
  hash-password [-password]        print a bcrypt hash for ADMIN_PASSWORD_HASH
`

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "partners":
		return a.partners()
	case "add-partner":
		return a.addPartner(ctx, args)
	case "delete-partner":
		return a.deletePartner(ctx, args)
	case "import":
		return a.importTransactions(ctx, args)
	case "export":
		return a.exportTransactions(ctx, args)
	case "summary":
		return a.summary(ctx, args)
	case "clients":
		return a.clients(args)
	case "import-clients":
		return a.importClients(ctx, args)
	case "export-clients":
		return a.exportClients(args)
	case "push", "pull":
		return a.syncCommand(ctx, cmd)
	case "hash-password":
		return a.hashPassword(args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// resolve finds a partner by id or username.
func (a *app) resolve(key string) (core.Partner, error) {
	if key == "" {
		return core.Partner{}, fmt.Errorf("%w: -partner is required", errUsage)
	}
	if p, ok := a.store.Partner(key); ok {
		return p, nil
	}
	if p, ok := a.store.FindByUsername(key); ok {
		return p, nil
	}
	return core.Partner{}, fmt.Errorf("%w: %s", store.ErrPartnerNotFound, key)
}

func (a *app) partners() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tCOMMISSION\tBONUS\tACTIVE\tTRANSACTIONS\tCLIENTS")
	for _, p := range a.store.Partners() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\t%t\t%d\t%d\n",
			p.ID, p.Username, p.Name, p.Commission, p.Bonus, p.Active, len(p.Transactions), len(p.Clients))
	}
	return tw.Flush()
}

func (a *app) addPartner(ctx context.Context, args []string) error {
	fs := newFlags("add-partner")
	name := fs.String("name", "", "display name")
	username := fs.String("username", "", "website username")
	commission := fs.String("commission", "0", "commission percent")
	bonus := fs.String("bonus", "0", "flat bonus")
	inactive := fs.Bool("inactive", false, "create as inactive")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	c, err := decimal.NewFromString(*commission)
	if err != nil {
		return fmt.Errorf("invalid commission %q", *commission)
	}
	b, err := decimal.NewFromString(*bonus)
	if err != nil {
		return fmt.Errorf("invalid bonus %q", *bonus)
	}
	p, err := a.store.AddPartner(ctx, core.Partner{
		Name: strings.TrimSpace(*name), Username: strings.TrimSpace(*username),
		Commission: c, Bonus: b, Active: !*inactive,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s (%s)\n", p.Username, p.ID)
	return nil
}

func (a *app) deletePartner(ctx context.Context, args []string) error {
	fs := newFlags("delete-partner")
	key := fs.String("partner", "", "partner id or username")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	if err := a.store.DeletePartner(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", p.Username)
	return nil
}

func (a *app) importTransactions(ctx context.Context, args []string) error {
	fs := newFlags("import")
	key := fs.String("partner", "", "partner id or username")
	file := fs.String("file", "-", "CSV file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	r, closeFn, err := a.open(*file)
	if err != nil {
		return err
	}
	defer closeFn()
	n, err := a.store.ImportTransactions(ctx, p.ID, r)
	if err != nil {
		return importFailure(a.out, err)
	}
	fmt.Fprintf(a.out, "imported %d transactions for %s\n", n, p.Username)
	return nil
}

func (a *app) importClients(ctx context.Context, args []string) error {
	fs := newFlags("import-clients")
	key := fs.String("partner", "", "partner id or username")
	file := fs.String("file", "-", "CSV file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	r, closeFn, err := a.open(*file)
	if err != nil {
		return err
	}
	defer closeFn()
	added, skipped, err := a.store.ImportClients(ctx, p.ID, r)
	if err != nil {
		return importFailure(a.out, err)
	}
	fmt.Fprintf(a.out, "added %d clients for %s, skipped %d\n", added, p.Username, skipped)
	return nil
}

// importFailure lists every rejected line before returning the error.
func importFailure(w io.Writer, err error) error {
	var ie *csvio.ImportError
	if errors.As(err, &ie) {
		for _, l := range ie.Lines {
			fmt.Fprintln(w, l.String())
		}
	}
	return err
}

func (a *app) exportTransactions(ctx context.Context, args []string) error {
	fs := newFlags("export")
	key := fs.String("partner", "", "partner id or username")
	out := fs.String("out", "-", "output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	txs, _, _ := a.store.WindowTransactions(ctx, p.ID, a.now())
	return a.write(*out, func(w io.Writer) error { return csvio.WriteTransactions(w, txs) })
}

func (a *app) exportClients(args []string) error {
	fs := newFlags("export-clients")
	key := fs.String("partner", "", "partner id or username")
	out := fs.String("out", "-", "output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	clients, _ := a.store.Clients(p.ID)
	return a.write(*out, func(w io.Writer) error { return csvio.WriteClients(w, clients) })
}

func (a *app) clients(args []string) error {
	fs := newFlags("clients")
	key := fs.String("partner", "", "partner id or username")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	p, err := a.resolve(*key)
	if err != nil {
		return err
	}
	clients, _ := a.store.Clients(p.ID)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tNAME\tACTIVE\tBALANCE")
	for _, c := range clients {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Login, c.Name, c.Active, c.Balance)
	}
	return tw.Flush()
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlags("summary")
	key := fs.String("partner", "", "partner id or username, all when empty")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	now := a.now()
	var sums []core.PartnerSummary
	if *key != "" {
		p, err := a.resolve(*key)
		if err != nil {
			return err
		}
		sum, _ := a.store.Summary(ctx, p.ID, now)
		sums = []core.PartnerSummary{*sum}
	} else {
		sums = a.store.Summaries(ctx, now)
	}

	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if *key != "" {
			return enc.Encode(sums[0])
		}
		return enc.Encode(map[string]any{
			"partners": sums,
			"total":    a.store.Total(ctx, now),
			"policy":   a.store.WindowPolicy().String(),
		})
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "USERNAME\tIN\tOUT\tCOMMISSION\tBONUS\tFINAL\tTXS\tCLIENTS\t")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t\n", s.Username,
			s.TotalIn.StringFixed(2), s.TotalOut.StringFixed(2), s.CommissionValue.StringFixed(2),
			s.Bonus.StringFixed(2), s.FinalBalance.StringFixed(2), s.TransactionCount, s.ClientCount)
	}
	if *key == "" {
		t := a.store.Total(ctx, now)
		fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t\n",
			t.TotalIn.StringFixed(2), t.TotalOut.StringFixed(2), t.TotalCommission.StringFixed(2),
			t.TotalBonus.StringFixed(2), t.TotalFinalBalance.StringFixed(2), t.TransactionCount, t.ClientCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(sums) > 0 {
		fmt.Fprintf(a.out, "window %s (%s)\n", sums[0].Window, a.store.WindowPolicy())
	}
	return nil
}

func (a *app) syncCommand(ctx context.Context, cmd string) error {
	runner, err := a.sync(ctx, a.store)
	if err != nil {
		return err
	}
	if cmd == "push" {
		if err := runner.Push(ctx); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "pushed %d partners\n", len(a.store.Partners()))
		return nil
	}
	n, err := runner.Pull(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pulled %d partners\n", n)
	return nil
}

func (a *app) hashPassword(args []string) error {
	fs := newFlags("hash-password")
	password := fs.String("password", "", "password, read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	pw := *password
	if pw == "" {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		return fmt.Errorf("%w: empty password", errUsage)
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

func (a *app) open(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return a.in, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (a *app) write(path string, fn func(io.Writer) error) error {
	if path == "-" || path == "" {
		return fn(a.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
