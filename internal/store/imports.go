package store

import (
	"context"
	"fmt"
	"io"

	"parceiros/internal/csvio"
)

// ImportTransactions parses a transaction CSV and appends every row to the
// partner. A single bad row fails the import and nothing is stored.
func (s *Store) ImportTransactions(ctx context.Context, partnerID string, r io.Reader) (int, error) {
	if _, ok := s.Partner(partnerID); !ok {
		return 0, ErrPartnerNotFound
	}
	txs, err := csvio.ParseTransactions(r, partnerID)
	if err != nil {
		return 0, fmt.Errorf("parse transactions: %w", err)
	}
	return s.AddTransactions(ctx, partnerID, txs)
}

// ImportClients parses a login,name,status CSV and adds the clients whose
// login is new for the partner.
func (s *Store) ImportClients(ctx context.Context, partnerID string, r io.Reader) (added, skipped int, err error) {
	if _, ok := s.Partner(partnerID); !ok {
		return 0, 0, ErrPartnerNotFound
	}
	clients, err := csvio.ParseClients(r, partnerID)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clients: %w", err)
	}
	return s.AddClients(ctx, partnerID, clients)
}
