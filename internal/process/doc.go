// Package process terminates external helper processes (the headless
// browser) together with their children.
package process
