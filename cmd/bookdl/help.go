package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bookdl <command> [flags] [args]")
	fmt.Fprintln(w, "       bookdl <book-url> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  download   Download a book and write it as one PDF or HTML file")
	fmt.Fprintln(w, "  query      Show a book's metadata")
	fmt.Fprintln(w, "  convert    Convert a directory kept by 'download --no-convert'")
	fmt.Fprintln(w, "  doctor     Check the browser, Firefox profile and temp directory")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'bookdl help <command>' for details on a specific command.")
}

func printAuthUsage(w io.Writer) {
	fmt.Fprintln(w, "Authentication (default: username and password):")
	fmt.Fprintln(w, "  -u, --username <s>        Username (or BOOKDL_USERNAME)")
	fmt.Fprintln(w, "  -p, --password <s>        Password (or BOOKDL_PASSWORD)")
	fmt.Fprintln(w, "      --firefox-cookies     Reuse the session of a logged-in Firefox")
	fmt.Fprintln(w, "      --institution         Log in through the institutional gateway")
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs")
}

// printDownloadUsage prints usage for the download command.
func printDownloadUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bookdl download <book-url> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download every page of a book, render it and write")
	fmt.Fprintln(w, "\"<author> - <title>.pdf\" in the output directory.")
	fmt.Fprintln(w)
	printAuthUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Book:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: current directory)")
	fmt.Fprintln(w, "      --format <s>          Output format: pdf, html (default: pdf)")
	fmt.Fprintln(w, "      --page-count <n>      Download at most n pages")
	fmt.Fprintln(w, "      --no-cover            Leave out the cover")
	fmt.Fprintln(w, "      --info-page           Add a book information page")
	fmt.Fprintln(w, "      --no-convert          Download sources only; see 'bookdl convert'")
	fmt.Fprintln(w, "      --keep                Keep the sources after converting")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance:")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent page downloads (0 = auto)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-page render timeout (default: 30s)")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printQueryUsage prints usage for the query command.
func printQueryUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bookdl query <book-url> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Log in and print the book's metadata without downloading pages.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Format:")
	fmt.Fprintln(w, "      --yaml                Print the metadata as YAML")
	fmt.Fprintln(w)
	printAuthUsage(w)
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bookdl convert <dir> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Assemble a directory left by 'download --no-convert' or '--keep'.")
	fmt.Fprintln(w, "The directory is not removed.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Book:")
	fmt.Fprintln(w, "  -o, --output <file>       Output file (default: \"<author> - <title>.<ext>\")")
	fmt.Fprintln(w, "      --format <s>          Output format: pdf, html (default: pdf)")
	fmt.Fprintln(w, "      --no-cover            Leave out the cover")
	fmt.Fprintln(w, "      --info-page           Add a book information page")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-page render timeout (default: 30s)")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "download":
		printDownloadUsage(env.Stdout)
	case "query":
		printQueryUsage(env.Stdout)
	case "convert":
		printConvertUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: bookdl doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check that a browser, a Firefox profile and a writable temp directory are available.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: bookdl version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: bookdl help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
