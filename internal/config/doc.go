// Package config holds the options of a harvester run: crawl bounds,
// politeness, storage backend, transport and report format.
//
// Options come from CLI flags. An optional YAML file (.harvester in the
// current or home directory) adds per-host settings such as cookies,
// headers and path patterns.
package config
