package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// hintError carries a next step for the user alongside the underlying failure.
type hintError struct {
	err  error
	hint string
}

func (e hintError) Error() string {
	return fmt.Sprintf("%s\nhint: %s", e.err.Error(), e.hint)
}

func (e hintError) Unwrap() error { return e.err }

func withHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return hintError{err: err, hint: hint}
}

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func errUsage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, errUsage("invalid %s id: %q", kind, s)
	}
	return id, nil
}

// parseIDList reads "4,5, 6" into ids, keeping order and dropping blanks.
func parseIDList(kind, s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := parseID(kind, part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
