package sheet

import (
	"context"
	"sort"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// Credentials implements ports.CredentialRepository on the USUARIOS sheet.
type Credentials struct {
	wb *Workbook
}

var _ ports.CredentialRepository = (*Credentials)(nil)

func (s *Credentials) FindByUsername(_ context.Context, username string) (*domain.Credential, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	ur, ok := s.wb.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *ur.cred
	return &c, nil
}

// List returns every account in sheet order.
func (s *Credentials) List(_ context.Context) ([]*domain.Credential, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows := make([]*userRow, 0, len(s.wb.users))
	for _, ur := range s.wb.users {
		rows = append(rows, ur)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].row < rows[j].row })

	out := make([]*domain.Credential, len(rows))
	for i, ur := range rows {
		c := *ur.cred
		out[i] = &c
	}
	return out, nil
}

func (s *Credentials) Save(_ context.Context, c *domain.Credential) (bool, error) {
	wb := s.wb
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.f == nil {
		return false, domain.NewStoreError("save user", errClosed)
	}

	ur, exists := wb.users[c.Username]
	row := wb.nextUserRow
	if exists {
		row = ur.row
	}

	undo := func() error { return wb.f.RemoveRow(UsersSheet, row) }
	if exists {
		undo = func() error { return wb.writeUser(row, ur.cred) }
	}
	if err := wb.apply(func() error { return wb.writeUser(row, c) }, undo); err != nil {
		return false, domain.NewStoreError("save user", err)
	}

	stored := *c
	wb.users[c.Username] = &userRow{cred: &stored, row: row}
	if !exists {
		wb.nextUserRow++
	}
	return !exists, nil
}

func (s *Credentials) Delete(_ context.Context, username string) error {
	wb := s.wb
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ur, ok := wb.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	if wb.f == nil {
		return domain.NewStoreError("delete user", errClosed)
	}

	vals, err := wb.rowValues(UsersSheet, ur.row)
	if err != nil {
		return domain.NewStoreError("delete user", err)
	}
	removed := false
	err = wb.apply(
		func() error {
			if err := wb.f.RemoveRow(UsersSheet, ur.row); err != nil {
				return err
			}
			removed = true
			return nil
		},
		func() error {
			if !removed {
				return nil
			}
			return wb.restoreRow(UsersSheet, ur.row, vals)
		},
	)
	if err != nil {
		return domain.NewStoreError("delete user", err)
	}

	delete(wb.users, username)
	for _, other := range wb.users {
		if other.row > ur.row {
			other.row--
		}
	}
	wb.nextUserRow--
	return nil
}

func (wb *Workbook) writeUser(row int, c *domain.Credential) error {
	return wb.writeCells(UsersSheet, wb.userCols, row, map[string]interface{}{
		colUsername: c.Username,
		colType:     c.Role.SheetLabel(),
		colPassword: c.Password,
		colClient:   c.Client,
	})
}
