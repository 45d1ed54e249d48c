package files

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rileyhilliard/myssh/internal/errors"
)

// ParseMode accepts an octal mode ("755", "0644", "4755") or a symbolic
// permission string ("rwxr-xr-x") and returns the os.FileMode to chmod with.
func ParseMode(s string) (os.FileMode, error) {
	if len(s) == 9 {
		if m, ok := parseSymbolic(s); ok {
			return m, nil
		}
	}
	if len(s) < 3 || len(s) > 4 {
		return 0, invalidMode(s)
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, invalidMode(s)
	}

	mode := os.FileMode(v & 0o777)
	if v&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if v&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if v&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode, nil
}

func parseSymbolic(s string) (os.FileMode, bool) {
	const want = "rwxrwxrwx"
	var mode os.FileMode
	for i := 0; i < 9; i++ {
		switch s[i] {
		case want[i]:
			mode |= 1 << uint(8-i)
		case '-':
		default:
			return 0, false
		}
	}
	return mode, true
}

func invalidMode(s string) error {
	return errors.New(errors.ErrInvalidMode,
		fmt.Sprintf("Invalid file mode %q", s),
		"Use octal digits like 755 or 0644, or a symbolic string like rwxr-xr-x")
}
