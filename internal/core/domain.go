package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Incoming TransactionType = "incoming"
	Outgoing TransactionType = "outgoing"
)

type (
	TransactionType string

	Transaction struct {
		ID          string          `json:"id"`
		PartnerID   string          `json:"partnerId"`
		ClientID    string          `json:"clientId,omitempty"`
		Date        string          `json:"date"`
		Time        string          `json:"time,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description"`
		ClientName  string          `json:"clientName,omitempty"`
		ClientLogin string          `json:"clientLogin,omitempty"`
		Method      string          `json:"method,omitempty"`
	}

	Client struct {
		ID        string          `json:"id"`
		PartnerID string          `json:"partnerId"`
		Login     string          `json:"login"`
		Name      string          `json:"name,omitempty"`
		Active    bool            `json:"active"`
		Balance   decimal.Decimal `json:"balance"`
	}

	Partner struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Username     string          `json:"username"`
		Commission   decimal.Decimal `json:"commission"` // percentage, 0..100
		Bonus        decimal.Decimal `json:"bonus"`
		Active       bool            `json:"active"`
		Transactions []Transaction   `json:"transactions"`
		Clients      []Client        `json:"clients"`
	}
)

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrEmptyName         = errors.New("empty partner name")
	ErrEmptyUsername     = errors.New("empty partner username")
	ErrInvalidCommission = errors.New("commission must be between 0 and 100")
	ErrEmptyLogin        = errors.New("empty client login")
)

var hundred = decimal.NewFromInt(100)

// UnmarshalJSON accepts the canonical values and the legacy entrada/saida tokens.
func (t *TransactionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "incoming", "entrada":
		*t = Incoming
	case "outgoing", "saida", "saída":
		*t = Outgoing
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Incoming || t == Outgoing
}

func (t Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	return nil
}

// Signed returns the amount with incoming positive and outgoing negative.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Incoming {
		return t.Amount
	}
	return t.Amount.Neg()
}

// ClientKey is the identity used to count distinct clients. The explicit
// ClientID wins; login and name are the legacy string-matched fallbacks.
func (t Transaction) ClientKey() string {
	if t.ClientID != "" {
		return "id:" + t.ClientID
	}
	if login := strings.TrimSpace(t.ClientLogin); login != "" {
		return "login:" + strings.ToLower(login)
	}
	if name := strings.TrimSpace(t.ClientName); name != "" {
		return "name:" + name
	}
	return ""
}

func (p Partner) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Username) == "" {
		return ErrEmptyUsername
	}
	if p.Commission.IsNegative() || p.Commission.GreaterThan(hundred) {
		return ErrInvalidCommission
	}
	return nil
}

// HasClientLogin reports whether the partner already owns a client with login.
func (p Partner) HasClientLogin(login string) bool {
	login = strings.TrimSpace(login)
	for _, c := range p.Clients {
		if strings.EqualFold(c.Login, login) {
			return true
		}
	}
	return false
}

// ResolveClientID finds the owned client a transaction refers to, first by
// login and then by name. Empty when nothing matches.
func (p Partner) ResolveClientID(t Transaction) string {
	if login := strings.TrimSpace(t.ClientLogin); login != "" {
		for _, c := range p.Clients {
			if strings.EqualFold(c.Login, login) {
				return c.ID
			}
		}
	}
	if name := strings.TrimSpace(t.ClientName); name != "" {
		for _, c := range p.Clients {
			if c.Name != "" && strings.EqualFold(c.Name, name) {
				return c.ID
			}
		}
	}
	return ""
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Login) == "" {
		return ErrEmptyLogin
	}
	return nil
}
