package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
)

// Tab headers. Every cell is written as text.
var (
	PartnerColumns     = []string{"id", "name", "username", "commission", "bonus", "active"}
	TransactionColumns = []string{"partner", "id", "date", "time", "client", "client_login", "client_id", "description", "amount", "type", "method"}
	ClientColumns      = []string{"partner", "id", "login", "name", "active", "balance"}
)

// Tables is the three-tab layout of the partner list.
type Tables struct {
	Partners     [][]any
	Transactions [][]any
	Clients      [][]any
}

// Encode flattens partners into the three tabs, each with its header row.
func Encode(partners []core.Partner) Tables {
	t := Tables{
		Partners:     [][]any{row(PartnerColumns...)},
		Transactions: [][]any{row(TransactionColumns...)},
		Clients:      [][]any{row(ClientColumns...)},
	}
	for _, p := range partners {
		t.Partners = append(t.Partners, row(p.ID, p.Name, p.Username,
			p.Commission.String(), p.Bonus.String(), strconv.FormatBool(p.Active)))
		for _, tx := range p.Transactions {
			t.Transactions = append(t.Transactions, row(p.ID, tx.ID, tx.Date, tx.Time,
				tx.ClientName, tx.ClientLogin, tx.ClientID, tx.Description,
				tx.Amount.String(), string(tx.Type), tx.Method))
		}
		for _, c := range p.Clients {
			t.Clients = append(t.Clients, row(p.ID, c.ID, c.Login, c.Name,
				strconv.FormatBool(c.Active), c.Balance.String()))
		}
	}
	return t
}

// Decode rebuilds partners from the three tabs. Columns are found by header
// name. Transaction and client rows name their partner by id or username.
func Decode(t Tables) ([]core.Partner, error) {
	var partners []core.Partner
	byKey := map[string]int{}

	pcols, prows := split(t.Partners)
	for i, r := range prows {
		get := pcols.getter(r)
		if blank(r) {
			continue
		}
		commission, err := amountOrZero(get("commission"))
		if err != nil {
			return nil, fmt.Errorf("partners row %d: commission: %w", i+2, err)
		}
		bonus, err := amountOrZero(get("bonus"))
		if err != nil {
			return nil, fmt.Errorf("partners row %d: bonus: %w", i+2, err)
		}
		p := core.Partner{
			ID:         get("id"),
			Name:       get("name"),
			Username:   get("username"),
			Commission: commission,
			Bonus:      bonus,
			Active:     truthy(get("active")),
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("partners row %d: %w", i+2, err)
		}
		partners = append(partners, p)
		if p.ID != "" {
			byKey[p.ID] = len(partners) - 1
		}
		byKey[strings.ToLower(p.Username)] = len(partners) - 1
	}
	owner := func(tab string, line int, key string) (int, error) {
		if i, ok := byKey[key]; ok {
			return i, nil
		}
		if i, ok := byKey[strings.ToLower(key)]; ok {
			return i, nil
		}
		return 0, fmt.Errorf("%s row %d: unknown partner %q", tab, line, key)
	}

	tcols, trows := split(t.Transactions)
	for i, r := range trows {
		if blank(r) {
			continue
		}
		get := tcols.getter(r)
		pi, err := owner("transactions", i+2, get("partner"))
		if err != nil {
			return nil, err
		}
		amount, err := core.ParseAmount(get("amount"))
		if err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+2, err)
		}
		tx := core.Transaction{
			ID:          get("id"),
			PartnerID:   partners[pi].ID,
			ClientID:    get("client_id"),
			Date:        get("date"),
			Time:        get("time"),
			Amount:      amount,
			Type:        core.TransactionType(strings.ToLower(get("type"))),
			Description: get("description"),
			ClientName:  get("client"),
			ClientLogin: get("client_login"),
			Method:      get("method"),
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+2, err)
		}
		partners[pi].Transactions = append(partners[pi].Transactions, tx)
	}

	ccols, crows := split(t.Clients)
	for i, r := range crows {
		if blank(r) {
			continue
		}
		get := ccols.getter(r)
		pi, err := owner("clients", i+2, get("partner"))
		if err != nil {
			return nil, err
		}
		balance, err := amountOrZero(get("balance"))
		if err != nil {
			return nil, fmt.Errorf("clients row %d: balance: %w", i+2, err)
		}
		c := core.Client{
			ID:        get("id"),
			PartnerID: partners[pi].ID,
			Login:     get("login"),
			Name:      get("name"),
			Active:    truthy(get("active")),
			Balance:   balance,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("clients row %d: %w", i+2, err)
		}
		partners[pi].Clients = append(partners[pi].Clients, c)
	}
	return partners, nil
}

type header map[string]int

func (h header) getter(r []any) func(string) string {
	return func(name string) string {
		i, ok := h[name]
		if !ok || i >= len(r) {
			return ""
		}
		return cell(r[i])
	}
}

func split(values [][]any) (header, [][]any) {
	h := header{}
	if len(values) == 0 {
		return h, nil
	}
	for i, v := range values[0] {
		h[strings.ToLower(cell(v))] = i
	}
	return h, values[1:]
}

func row(cells ...string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func blank(r []any) bool {
	for _, v := range r {
		if cell(v) != "" {
			return false
		}
	}
	return true
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "sim", "ativo":
		return true
	}
	return false
}

func amountOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}
