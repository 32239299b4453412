package postgres

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// isDuplicate reports a unique-constraint rejection (SQLSTATE 23505)
func isDuplicate(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}
