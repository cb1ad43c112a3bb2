package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique constraint.
type ErrDuplicate struct {
	Constraint string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate key violates %s", e.Constraint)
}

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// asDuplicate converts a unique violation into *ErrDuplicate and leaves any
// other error untouched.
func asDuplicate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &ErrDuplicate{Constraint: pqErr.Constraint}
	}
	return err
}

// valuesClause renders "($1,$2,...),($n+1,...)" for rows tuples of width
// columns.
func valuesClause(rows, width int) string {
	var b strings.Builder
	b.Grow(rows * width * 6)

	param := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(param))
			param++
		}
		b.WriteByte(')')
	}

	return b.String()
}
