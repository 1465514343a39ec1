// Package license asks the operator to accept a dataset's terms of use
// before anything is downloaded.
package license

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrNotAccepted is returned when the terms were declined or could not be asked.
var ErrNotAccepted = eris.New("license: terms not accepted")

// Prompt is where terms are shown and answers are read.
type Prompt struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool // In is a terminal a person can answer on
}

// StdPrompt prompts on stderr and reads stdin.
func StdPrompt() Prompt {
	return Prompt{
		In:          os.Stdin,
		Out:         os.Stderr,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Confirm shows terms and returns nil once they are accepted. With
// assumeYes the terms are shown and accepted without asking. A
// non-interactive prompt without assumeYes fails with ErrNotAccepted.
func Confirm(terms string, p Prompt, assumeYes bool) error {
	log := zap.L().With(zap.String("component", "license"))

	fmt.Fprintln(p.Out, strings.TrimRight(terms, "\n")) //nolint:errcheck
	if assumeYes {
		log.Info("license accepted via --yes")
		return nil
	}
	if !p.Interactive {
		return eris.Wrap(ErrNotAccepted, "stdin is not a terminal; rerun with --yes to accept")
	}

	fmt.Fprint(p.Out, "同意しますか？ (Accept the terms?) [y/N]: ") //nolint:errcheck
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return eris.Wrap(err, "license: read answer")
	}

	if accepted(line) {
		log.Info("license accepted")
		return nil
	}
	return ErrNotAccepted
}

func accepted(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "はい":
		return true
	}
	return false
}
