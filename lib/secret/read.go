// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// maxSecretLine bounds a password read from a file or pipe.
const maxSecretLine = 4096

// ReadPassword writes prompt to out and reads one line from the
// terminal fd without echo.
func ReadPassword(fd int, out io.Writer, prompt string) (*Buffer, error) {
	if !term.IsTerminal(fd) {
		return nil, errors.New("secret: password prompt needs a terminal")
	}
	fmt.Fprint(out, prompt)
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		Zero(line)
		return nil, fmt.Errorf("secret: reading password: %w", err)
	}
	return NewFromBytes(line)
}

// ReadFromPath reads a password from the first line of a file, or of
// stdin when path is "-". Only the line ending is stripped; the rest
// of the line is the password.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return readFirstLine(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	defer file.Close()
	return readFirstLine(file)
}

func readFirstLine(reader io.Reader) (*Buffer, error) {
	scratch := make([]byte, maxSecretLine)
	defer Zero(scratch)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(scratch, maxSecretLine)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("secret: reading password: %w", err)
		}
		return nil, errors.New("secret: no password line")
	}
	// ScanLines already dropped "\n" and a preceding "\r".
	line := scanner.Bytes()
	if len(line) == 0 {
		return nil, errors.New("secret: password line is empty")
	}
	return NewFromBytes(line)
}
