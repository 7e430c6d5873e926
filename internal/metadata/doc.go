// Package metadata inspects harvested binaries and records what they say
// about themselves.
//
// The Inspector implements the crawler's Enricher interface. For images it
// decodes only the header to get the dimensions and copies a fixed set of
// EXIF tags (camera, software, author, GPS position). For PDF files it
// reads the document information dictionary and the XMP creator tool.
// Nothing is fetched: the inspector works on the body the crawler already
// downloaded.
package metadata
