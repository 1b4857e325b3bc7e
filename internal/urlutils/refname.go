package urlutils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBranch indicates that a branch name is not a valid git ref name
var ErrInvalidBranch = errors.New("invalid branch name")

// ValidateBranch applies the rules of `git check-ref-format --branch`.
func ValidateBranch(name string) error {
	reject := func(reason string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidBranch, name, reason)
	}

	switch {
	case name == "":
		return reject("empty")
	case name == "@":
		return reject("the name @ is reserved")
	case strings.HasPrefix(name, "-"):
		return reject("must not start with -")
	case strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return reject("must not start or end with /")
	case strings.HasSuffix(name, "."):
		return reject("must not end with .")
	case strings.Contains(name, "@{"):
		return reject("must not contain @{")
	case strings.Contains(name, "//"):
		return reject("must not contain //")
	case strings.Contains(name, ".."):
		return reject("must not contain ..")
	}

	for _, r := range name {
		if r <= 040 || r == 0177 {
			return reject("must not contain control characters or spaces")
		}
		if strings.ContainsRune("~^:?*[\\", r) {
			return reject(fmt.Sprintf("must not contain %q", r))
		}
	}

	for _, component := range strings.Split(name, "/") {
		if strings.HasPrefix(component, ".") {
			return reject("path components must not start with .")
		}
		if strings.HasSuffix(component, ".lock") {
			return reject("path components must not end with .lock")
		}
	}

	return nil
}
