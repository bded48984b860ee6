package domain

import (
	"fmt"
	"regexp"

	"github.com/stockroom/batch-service/pkg/errors"
)

// Shelf coordinate bounds. Sectors A-D, rows 1-5, columns 1-4
// give 80 addressable shelves in total.
const (
	MinRow    = 1
	MaxRow    = 5
	MinColumn = 1
	MaxColumn = 4
)

var shelfPattern = regexp.MustCompile(`^[A-D][1-5]-[1-4]$`)

// ShelfAddress identifies a single storage slot as {Sector}{Row}-{Column},
// e.g. "A3-2". The zero value is not a valid address.
type ShelfAddress struct {
	sector string
	row    int
	column int
}

// ParseShelfAddress parses and validates a raw shelf string.
// Any input not matching the exact grammar is rejected before it can
// reach capacity or merge logic.
func ParseShelfAddress(raw string) (ShelfAddress, error) {
	if !shelfPattern.MatchString(raw) {
		return ShelfAddress{}, errors.ErrInvalidShelf(raw)
	}

	return ShelfAddress{
		sector: string(raw[0]),
		row:    int(raw[1] - '0'),
		column: int(raw[3] - '0'),
	}, nil
}

// NewShelfAddress builds an address from components, validating bounds.
func NewShelfAddress(sector string, row, column int) (ShelfAddress, error) {
	raw := fmt.Sprintf("%s%d-%d", sector, row, column)
	return ParseShelfAddress(raw)
}

// MustParseShelfAddress parses a shelf string and panics on failure.
// Intended for constants and tests.
func MustParseShelfAddress(raw string) ShelfAddress {
	addr, err := ParseShelfAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the canonical string form, e.g. "B2-4".
func (a ShelfAddress) String() string {
	return fmt.Sprintf("%s%d-%d", a.sector, a.row, a.column)
}

// Sector returns the sector letter (A-D).
func (a ShelfAddress) Sector() string {
	return a.sector
}

// Row returns the row number (1-5).
func (a ShelfAddress) Row() int {
	return a.row
}

// Column returns the column number (1-4).
func (a ShelfAddress) Column() int {
	return a.column
}

// IsZero reports whether the address is the zero value.
func (a ShelfAddress) IsZero() bool {
	return a.sector == ""
}

// Equals compares two shelf addresses.
func (a ShelfAddress) Equals(other ShelfAddress) bool {
	return a == other
}

// MarshalText implements encoding.TextMarshaler.
func (a ShelfAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ShelfAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseShelfAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AllSectors returns the sector letters in order.
func AllSectors() []string {
	return []string{"A", "B", "C", "D"}
}

// SectorShelves enumerates the 20 shelves of a sector in scan order:
// rows 1 to 5, and within each row, columns 1 to 4.
func SectorShelves(sector string) []ShelfAddress {
	shelves := make([]ShelfAddress, 0, MaxRow*MaxColumn)
	for row := MinRow; row <= MaxRow; row++ {
		for col := MinColumn; col <= MaxColumn; col++ {
			shelves = append(shelves, ShelfAddress{sector: sector, row: row, column: col})
		}
	}
	return shelves
}
