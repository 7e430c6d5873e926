// Package main provides the entry point for the harvester CLI.
//
// harvester crawls a website from one or more seed URLs and stores the page
// text, images, downloadable files, audio and video it finds. Results are
// grouped by output directory and can be read back at any time.
//
// Usage:
//
//	harvester crawl -o out/example https://example.com/
//	harvester query -o out/example --type images
//	harvester history
//
// See --help for all available options.
package main

// main is the entry point for harvester.
func main() {
	Execute()
}
