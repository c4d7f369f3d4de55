package stepper

import "math"

// ParseMoves resolves the step count of a motion request from the
// command arguments. Without arguments it's DefaultMoves; otherwise the
// first argument is converted the way C atoi does: leading blanks, an
// optional sign and the leading digits. Anything else yields 0.
func ParseMoves(args []string) int {
	if len(args) == 0 {
		return DefaultMoves
	}
	return atoi(args[0])
}

func atoi(s string) int {
	i := 0
	for i < len(s) && isBlank(s[i]) {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > math.MaxInt32+1 {
			n = math.MaxInt32 + 1
		}
	}
	if neg {
		n = -n
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return int(n)
}

func isBlank(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
