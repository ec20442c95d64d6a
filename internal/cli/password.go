package cli

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"golang.org/x/term"
)

// readPassword gets the SSH password once for the whole fleet: from the
// first line of stdin with --password-stdin, otherwise from a masked
// prompt. Without a terminal there is nobody to prompt.
func readPassword(in io.Reader, user string, fromStdin bool) (string, error) {
	if fromStdin {
		return readPasswordLine(in)
	}
	if !isTerminal(in) {
		return "", errors.New(errors.ErrConfig,
			"Can't prompt for the SSH password without a terminal",
			"Pipe it in instead: gpumon --password-stdin < password-file")
	}
	return promptPassword(user)
}

func readPasswordLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read the password from stdin", "")
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New(errors.ErrConfig,
			"No password on stdin",
			"--password-stdin reads the first line of stdin; make sure it isn't empty.")
	}
	return line, nil
}

func promptPassword(user string) (string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("SSH password for %s", user)).
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password can't be empty")
					}
					return nil
				}).
				Value(&password),
		),
	)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.New(errors.ErrConfig, "Password prompt cancelled", "")
		}
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Password prompt failed", "")
	}
	return password, nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
