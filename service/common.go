package service

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is reported by the version command.
const Version = "1.0.0"

// Console streams, swapped out in tests.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(question string) bool {
	fmt.Fprintf(stdout, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
