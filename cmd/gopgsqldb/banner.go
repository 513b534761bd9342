package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// isTTY returns true if the given file descriptor is a terminal.
func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// printBanner prints the gopgsqldb ASCII art banner, with a green to cyan
// gradient when useColor is true.
func printBanner(w io.Writer, useColor bool) {
	lines := []string{
		`                                                        `,
		`   __ _  ___  _ __   __ _ ___  __ _| | __| | |__       `,
		`  / _' |/ _ \| '_ \ / _' / __|/ _' | |/ _' | '_ \      `,
		` | (_| | (_) | |_) | (_| \__ \ (_| | | (_| | |_) |     `,
		`  \__, |\___/| .__/ \__, |___/\__, |_|\__,_|_.__/      `,
		`  |___/      |_|    |___/        |_|                   `,
		`                                                        `,
	}

	if !useColor {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}

	colors := []string{
		"\033[1;32m", // bold green
		"\033[1;32m",
		"\033[1;92m", // bold bright green
		"\033[1;36m", // bold cyan
		"\033[1;96m", // bold bright cyan
		"\033[1;34m", // bold blue
		"\033[0m",
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%s%s\033[0m\n", colors[i%len(colors)], line)
	}
}
