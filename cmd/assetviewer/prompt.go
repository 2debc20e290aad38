package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var errNoVersionChosen = errors.New("no version chosen")

// promptVersion asks the user to pick one of ids by number or name.
// An empty answer picks def. Invalid answers are asked again until input ends.
func promptVersion(in io.Reader, out io.Writer, ids []string, def string) (string, error) {
	if len(ids) == 0 {
		return "", errNoVersionChosen
	}
	fmt.Fprintln(out, "Available versions:")
	for i, id := range ids {
		fmt.Fprintf(out, "  %3d) %s\n", i+1, id)
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "Choose version [%s]: ", def)
		if !sc.Scan() {
			fmt.Fprintln(out)
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", errNoVersionChosen
		}
		answer := strings.TrimSpace(sc.Text())
		switch {
		case answer == "" && def != "":
			return def, nil
		case slices.Contains(ids, answer):
			return answer, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(ids) {
			return ids[n-1], nil
		}
		fmt.Fprintf(out, "%q is not one of the listed versions\n", answer)
	}
}
