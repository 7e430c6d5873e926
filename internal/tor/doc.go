// Package tor routes crawl sessions through Tor.
//
// A Proxy dials through any SOCKS5 proxy and plugs into the HTTP client of
// a session as its dialer. EmbeddedTor launches a private Tor daemon with
// tornago for users without a local Tor service. The onion helpers validate
// .onion seed hosts before a session starts, since a mistyped v3 address
// would otherwise only surface as a fetch timeout.
package tor
