package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parceiros/internal/core"
)

var ClientHeader = []string{"login", "name", "status"}

const (
	statusActive   = "ativo"
	statusInactive = "inativo"
)

var clientAliases = map[string]string{
	"login": "login",
	"name":  "name", "nome": "name",
	"status": "status", "situacao": "status",
}

// ParseClients reads a login,name,status CSV. The header row is required;
// an unknown first column name is read as the positional layout. Only the literal status
// "ativo" (any case) marks a client active. Deduplication against existing
// clients is the caller's job.
func ParseClients(r io.Reader, partnerID string) ([]core.Client, error) {
	header, records, lines, err := readAll(r)
	if err != nil {
		return nil, err
	}
	cols, ok := mapHeader(header, clientAliases, "login")
	if !ok {
		// A first row with no known column name is data, not a header.
		// A header that names other columns but not login has nothing to
		// anchor a positional read on.
		if len(cols) == 0 || cols.has(0) {
			return nil, ErrMissingHeader
		}
		cols = positional(ClientHeader...)
	}

	out := make([]core.Client, 0, len(records))
	importErr := &ImportError{}
	for i, rec := range records {
		login := cols.get(rec, "login")
		if login == "" {
			importErr.add(lines[i], "missing login")
			continue
		}
		out = append(out, core.Client{
			ID:        uuid.NewString(),
			PartnerID: partnerID,
			Login:     login,
			Name:      cols.get(rec, "name"),
			Active:    strings.EqualFold(cols.get(rec, "status"), statusActive),
			Balance:   decimal.Zero,
		})
	}
	if err := importErr.errOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func WriteClients(w io.Writer, clients []core.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClientHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range clients {
		status := statusInactive
		if c.Active {
			status = statusActive
		}
		if err := cw.Write([]string{c.Login, c.Name, status}); err != nil {
			return fmt.Errorf("write client %s: %w", c.Login, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
