package bookdl_test

import (
	"errors"
	"fmt"

	"github.com/alnah/go-bookdl"
)

// ExampleParseFormat shows how format names are normalized.
func ExampleParseFormat() {
	for _, name := range []string{"", "HTML", "epub"} {
		f, err := bookdl.ParseFormat(name)
		if err != nil {
			fmt.Println("error:", errors.Is(err, bookdl.ErrUnknownFormat))
			continue
		}
		fmt.Println(f)
	}
	// Output:
	// pdf
	// html
	// error: true
}

// ExampleStageError shows how a failure is attributed to a stage and page.
func ExampleStageError() {
	var err error = &bookdl.StageError{Stage: bookdl.StageFetch, Page: 12, Err: bookdl.ErrPageDenied}

	var se *bookdl.StageError
	if errors.As(err, &se) {
		fmt.Println(se.Stage, se.Page, errors.Is(err, bookdl.ErrPageDenied))
	}
	// Output: fetch 12 true
}

// ExampleResolveWorkers shows the explicit worker count taking priority.
func ExampleResolveWorkers() {
	fmt.Println(bookdl.ResolveWorkers(3))
	// Output: 3
}
