// Package bookdl downloads books from an online reading platform and writes
// each one as a single PDF or HTML file.
//
// # Quick Start
//
// Create a downloader and download a book:
//
//	d, err := bookdl.NewDownloader()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := d.Download(ctx, bookdl.Request{
//	    BookURL:     "https://libra.ibuk.pl/reader/some-book",
//	    Strategy:    bookdl.CredentialLogin,
//	    Credentials: bookdl.Credentials{Username: "reader", Password: "secret"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Document.Path) // "<author> - <title>.pdf"
//
// # Pipeline
//
// A download runs these stages:
//
//  1. Authentication: credential login, cookies imported from Firefox, or
//     an institutional single sign-on
//  2. Metadata resolution: title, author, page count and the page sequence
//  3. Page fetching over the platform's page service, several pages at once
//  4. Rendering of each page to a one-page PDF in headless Chrome (go-rod)
//  5. Assembly of the cover, the optional information page and the pages
//     into one document, in page order
//
// Rendering starts as soon as the next page in order has arrived, so
// fetching and rendering overlap. Failures are reported as *StageError,
// which names the stage and, where relevant, the page:
//
//	var se *bookdl.StageError
//	if errors.As(err, &se) && se.Stage == bookdl.StageFetch {
//	    log.Printf("page %d could not be fetched", se.Page)
//	}
//
// The sentinel errors (ErrInvalidCredentials, ErrPageDenied, ...) match with
// errors.Is.
//
// # Configuration
//
// Use functional options to customize the downloader:
//
//	d, err := bookdl.NewDownloader(
//	    bookdl.WithWorkers(4),
//	    bookdl.WithRenderTimeout(time.Minute),
//	    bookdl.WithLogger(slog.Default()),
//	)
//
// # Two-step downloads
//
// Request.NoConvert stops after fetching and keeps the pages, cover and a
// manifest in "<output>/<book>". Convert turns such a directory into a
// document later, without logging in again:
//
//	res, err := d.Convert(ctx, bookdl.ConvertRequest{Dir: "books/Some Book", Format: bookdl.FormatHTML})
//
// # Browser Requirements
//
// PDF output requires Chrome/Chromium; HTML output does not. The go-rod
// library downloads a managed Chromium on first run (~/.cache/rod/browser/).
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 to disable the
// Chrome sandbox. Use ROD_BROWSER_BIN to specify a custom Chrome binary.
package bookdl
