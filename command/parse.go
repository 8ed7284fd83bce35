package command

// MaxArgs is the maximum number of tokens a single request is parsed
// into; anything beyond that is discarded.
const MaxArgs = 31

// ParseArgv splits raw into whitespace-separated tokens the way the
// wire parser does: every byte with ASCII value <= 0x20 is treated as
// a terminator, non-empty runs between terminators become tokens, and
// at most MaxArgs tokens are collected. No quoting or escaping.
func ParseArgv(raw []byte) []string {
	args := make([]string, 0, 8)
	start := -1

	flush := func(end int) {
		if start >= 0 {
			args = append(args, string(raw[start:end]))
			start = -1
		}
	}

	for i := 0; i < len(raw) && len(args) < MaxArgs; i++ {
		if raw[i] <= 0x20 {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if len(args) < MaxArgs {
		flush(len(raw))
	}
	return args
}
