package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// prompter asks for values that were not given as flags.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line prints label and reads one line without its newline. Empty answers
// are asked again.
func (p *prompter) line(label string) (string, error) {
	for {
		fmt.Fprint(p.out, label)
		answer, err := p.in.ReadString('\n')
		answer = strings.TrimRight(answer, "\r\n")
		if answer != "" {
			return answer, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("no answer for %q", strings.TrimSpace(label))
			}
			return "", err
		}
	}
}

// key asks until the answer parses as a key.
func (p *prompter) key(label string) (uint64, error) {
	for {
		answer, err := p.line(label)
		if err != nil {
			return 0, err
		}
		key, err := parseKey(answer)
		if err == nil {
			return key, nil
		}
		fmt.Fprintf(p.out, "%v\n", err)
	}
}

// parseKey accepts a decimal key or a hexadecimal one prefixed with 0x.
func parseKey(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	}
	key, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: must be an unsigned 64-bit integer", s)
	}
	return key, nil
}
