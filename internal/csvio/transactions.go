package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"parceiros/internal/core"
)

// TransactionHeader is the canonical export header.
var TransactionHeader = []string{"date", "time", "client", "client_login", "description", "amount", "type", "method"}

// legacyHeader is the four column layout older exports used.
var legacyHeader = []string{"date", "description", "amount", "type"}

// IncomingTokens mark a row as incoming when its type column contains one of
// them, ignoring case. Every other value is outgoing.
var IncomingTokens = []string{"entrada", "incoming", "income", "deposit", "deposito", "depósito", "credit"}

var transactionAliases = map[string]string{
	"date": "date", "data": "date",
	"time": "time", "hora": "time",
	"client": "client", "cliente": "client", "client_name": "client", "clientname": "client",
	"client_login": "client_login", "login": "client_login", "login_do_cliente": "client_login", "clientlogin": "client_login",
	"description": "description", "descricao": "description",
	"amount": "amount", "valor": "amount", "value": "amount",
	"type": "type", "tipo": "type",
	"method": "method", "metodo": "method",
}

// ClassifyType maps a free-text type column onto a transaction type.
func ClassifyType(s string) core.TransactionType {
	s = strings.ToLower(s)
	for _, tok := range IncomingTokens {
		if strings.Contains(s, tok) {
			return core.Incoming
		}
	}
	return core.Outgoing
}

// ParseTransactions reads a transaction CSV for partnerID. Columns are found
// by header name (English or Portuguese); an unrecognized header falls back to
// position: four columns or fewer is the legacy date,description,amount,type
// layout, anything wider is the canonical eight column layout.
func ParseTransactions(r io.Reader, partnerID string) ([]core.Transaction, error) {
	header, records, lines, err := readAll(r)
	if err != nil {
		return nil, err
	}

	cols, ok := mapHeader(header, transactionAliases, "date", "amount")
	if !ok {
		if looksLikeData(header) {
			return nil, ErrMissingHeader
		}
		if len(header) <= len(legacyHeader) {
			cols = positional(legacyHeader...)
		} else {
			cols = positional(TransactionHeader...)
		}
	}

	out := make([]core.Transaction, 0, len(records))
	importErr := &ImportError{}
	for i, rec := range records {
		line := lines[i]
		rawAmount := cols.get(rec, "amount")
		if rawAmount == "" {
			importErr.add(line, "missing amount")
			continue
		}
		amount, err := core.ParseAmount(rawAmount)
		if err != nil {
			importErr.add(line, "invalid amount %q", rawAmount)
			continue
		}
		if amount.IsNegative() {
			importErr.add(line, "negative amount %q", rawAmount)
			continue
		}

		out = append(out, core.Transaction{
			ID:          uuid.NewString(),
			PartnerID:   partnerID,
			Date:        core.NormalizeDate(cols.get(rec, "date")),
			Time:        cols.get(rec, "time"),
			Amount:      amount,
			Type:        ClassifyType(cols.get(rec, "type")),
			Description: cols.get(rec, "description"),
			ClientName:  cols.get(rec, "client"),
			ClientLogin: cols.get(rec, "client_login"),
			Method:      cols.get(rec, "method"),
		})
	}
	if err := importErr.errOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// looksLikeData reports whether a supposed header row is really a data row.
func looksLikeData(header []string) bool {
	if len(header) == 0 {
		return false
	}
	_, err := core.ParseDate(header[0])
	return err == nil
}

// ReportHeader is TransactionHeader with the owning partner after the client.
var ReportHeader = []string{"date", "time", "client", "client_login", "partner", "description", "amount", "type", "method"}

// PartnerTransaction is a transaction labelled with its partner for report exports.
type PartnerTransaction struct {
	Partner string
	core.Transaction
}

// WriteTransactions writes txs with the canonical header and two decimal amounts.
func WriteTransactions(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TransactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txs {
		if err := cw.Write(transactionRecord(t, nil)); err != nil {
			return fmt.Errorf("write transaction %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReport writes cross-partner rows with ReportHeader.
func WriteReport(w io.Writer, rows []PartnerTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		partner := r.Partner
		if err := cw.Write(transactionRecord(r.Transaction, &partner)); err != nil {
			return fmt.Errorf("write transaction %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func transactionRecord(t core.Transaction, partner *string) []string {
	rec := []string{t.Date, t.Time, t.ClientName, t.ClientLogin}
	if partner != nil {
		rec = append(rec, *partner)
	}
	return append(rec, t.Description, core.FormatAmount(t.Amount), string(t.Type), t.Method)
}
