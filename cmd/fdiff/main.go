package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sokinpui/fdiff"
)

func main() {
	err := fdiff.Execute()
	if err == nil {
		return
	}

	if !errors.Is(err, fdiff.ErrIncomplete) {
		fdiff.Error("Error: %v", err)
	}
	var de *fdiff.DetailedError
	if errors.As(err, &de) {
		fmt.Fprintf(os.Stderr, "%s\n", de.Stack)
	}
	os.Exit(1)
}
