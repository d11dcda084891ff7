// Command qrctl is a command-line client for a qrgate deployment.
//
//	qrctl login --email test@test.com --password 123456
//	qrctl factorize --token $TOKEN '[[1,2],[3,4]]'
//	qrctl validate-token $TOKEN
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
