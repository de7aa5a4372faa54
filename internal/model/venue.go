package model

import (
    "errors"
    "strconv"
    "strings"
    "time"
)

// SeatStatus is the booking state of a single seat.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatPending   SeatStatus = "pending"
    SeatBooked    SeatStatus = "booked"
)

var (
    // ErrInvalidSeatNumber is returned when a seat number is not a positive integer.
    ErrInvalidSeatNumber = errors.New("seat number must be a positive integer")
    // ErrSeatOutOfRange is returned when a seat number lies beyond rows × columns.
    ErrSeatOutOfRange = errors.New("seat number out of range")
)

// Seat is one physical seat inside a section.  Row and Column are derived
// from the seat's linear index and never change after the section is
// generated.  BookedBy is non-nil exactly when Status is SeatBooked.
type Seat struct {
    SeatNumber string     `json:"seat_number"`
    Row        uint32     `json:"row"`
    Column     uint32     `json:"column"`
    Status     SeatStatus `json:"status"`
    BookedBy   *uint64    `json:"booked_by,omitempty"`
}

// Section is a named rectangular block of seats.  Seats is dense and
// ordered by linear index: Seats[(row-1)*Columns + (column-1)].
type Section struct {
    Name     string `json:"name"`
    Rows     uint32 `json:"rows"`
    Columns  uint32 `json:"columns"`
    Priority int    `json:"priority"`
    Seats    []Seat `json:"seats,omitempty"`
}

// Venue owns the seat-section layout used as the template for every event
// held there.
//
// Fields:
//  ID        – primary key identifier.
//  ManagerID – user id of the venue manager.
//  Name      – display name.
//  Sections  – layout template; every seat is available.
type Venue struct {
    ID        uint64    `json:"id"`
    ManagerID uint64    `json:"manager_id"`
    Name      string    `json:"name"`
    Sections  []Section `json:"sections"`
    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

// NewSection builds a section with rows × columns available seats.
func NewSection(name string, rows, columns uint32, priority int) Section {
    s := Section{Name: name, Rows: rows, Columns: columns, Priority: priority}
    s.Seats = make([]Seat, 0, int(rows)*int(columns))
    for i := 0; i < int(rows)*int(columns); i++ {
        s.Seats = append(s.Seats, SeatAt(i, columns))
    }
    return s
}

// SeatAt returns the available seat stored at linear index i of a section
// with the given column count.
func SeatAt(i int, columns uint32) Seat {
    return Seat{
        SeatNumber: strconv.Itoa(i + 1),
        Row:        uint32(i)/columns + 1,
        Column:     uint32(i)%columns + 1,
        Status:     SeatAvailable,
    }
}

// Capacity is the number of seats in the section.
func (s Section) Capacity() int { return int(s.Rows) * int(s.Columns) }

// SeatPosition locates a seat inside its section.
type SeatPosition struct {
    Row    uint32
    Column uint32
    Index  int
}

// Locate resolves a seat number to its row, column and linear index:
// row = ceil(n / columns), column = ((n-1) mod columns) + 1.
func (s Section) Locate(seatNumber string) (SeatPosition, error) {
    n, err := strconv.ParseUint(strings.TrimSpace(seatNumber), 10, 32)
    if err != nil || n == 0 {
        return SeatPosition{}, ErrInvalidSeatNumber
    }
    if s.Columns == 0 {
        return SeatPosition{}, ErrSeatOutOfRange
    }
    cols := uint64(s.Columns)
    row := (n + cols - 1) / cols
    if row > uint64(s.Rows) {
        return SeatPosition{}, ErrSeatOutOfRange
    }
    col := (n-1)%cols + 1
    return SeatPosition{
        Row:    uint32(row),
        Column: uint32(col),
        Index:  int((row-1)*cols + (col - 1)),
    }, nil
}

// FindSection returns the section with the given name.
func FindSection(sections []Section, name string) (*Section, bool) {
    for i := range sections {
        if sections[i].Name == name {
            return &sections[i], true
        }
    }
    return nil, false
}

// Capacity sums the seats of every section.
func (v *Venue) Capacity() int {
    total := 0
    for _, s := range v.Sections {
        total += s.Capacity()
    }
    return total
}
