package errutils

// Package errutils provides a set of utilities for working with errors in Go.

// Example:
//
// The following example demonstrates how to collect several errors in a `MultiError`:
//
//     package main
//
//     import (
//         "errors"
//         "fmt"
//         "github.com/asksbj/jpstamp-pipeline/errutils"
//     )
//
//     var errNotFound = errutils.NewCustomError("record %s not found")
//
//     func main() {
//         multi := errutils.NewMultiErr(nil)
//         multi.Add(errNotFound.Err("a"))
//         multi.Add(errors.New("timeout"))
//         if multi.HasErrors() {
//             fmt.Println(multi)
//         }
//     }
//
// In the above example, `NewMultiErr(nil)` starts with no errors, each `Add` call records one error,
// and printing the `MultiError` prints the collected messages one per line.
