// Package pages declares the forms of each page: their fields, defaults,
// request builders and where a successful submission goes.
package pages

import (
	"time"

	apperrors "carepulse/internal/common/errors"
)

func str(values map[string]interface{}, name string) string {
	s, _ := values[name].(string)
	return s
}

func boolean(values map[string]interface{}, name string) bool {
	b, _ := values[name].(bool)
	return b
}

func instant(values map[string]interface{}, name string) time.Time {
	t, _ := values[name].(time.Time)
	return t
}

// requireIDs returns a MISSING_PRECONDITION error naming the first empty id.
func requireIDs(ids ...[2]string) error {
	for _, id := range ids {
		if id[1] == "" {
			return apperrors.NewMissingPreconditionError(id[0])
		}
	}
	return nil
}
