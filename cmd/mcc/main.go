// Package main is the motor control container entry point. CLI
// handling lives in the Cobra commands alongside this file.
package main

func main() {
	Execute()
}
