package harvest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/tor"
)

// Transport is the network route of a run: direct, an external SOCKS5
// proxy, or an embedded Tor daemon.
type Transport struct {
	proxy    *tor.Proxy
	embedded *tor.EmbeddedTor
	logger   *slog.Logger
}

// StartTransport prepares the route selected by cfg. With --tor it starts
// the embedded daemon, which can take minutes. A configured proxy must
// pass a SOCKS5 handshake before any crawl starts.
func StartTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Transport, error) {
	t := &Transport{logger: logger}

	switch {
	case cfg.UseTor:
		t.embedded = tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := t.embedded.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		logger.InfoContext(ctx, "embedded Tor daemon started",
			slog.String("socks_addr", t.embedded.SocksAddr()),
			slog.String("control_addr", t.embedded.ControlAddr()))

		p, err := t.embedded.Proxy()
		if err != nil {
			t.Close()
			return nil, err
		}
		t.proxy = p
	case cfg.ProxyAddress != "":
		p, err := tor.NewProxy(cfg.ProxyAddress)
		if err != nil {
			return nil, err
		}
		t.proxy = p
	default:
		return t, nil
	}

	if status := t.proxy.CheckConnection(ctx); status != tor.ProxyStatusOK {
		t.Close()
		return nil, fmt.Errorf("proxy check failed for %s: %w", t.proxy.Address(), status.Error())
	}
	logger.InfoContext(ctx, "proxy connection verified", slog.String("address", t.proxy.Address()))
	return t, nil
}

// Options returns the service options routing sessions through the
// transport.
func (t *Transport) Options() []Option {
	if t.proxy == nil {
		return nil
	}
	return []Option{WithDialer(t.proxy)}
}

// Close stops the embedded daemon, if any.
func (t *Transport) Close() {
	if t.embedded == nil {
		return
	}
	if err := t.embedded.Stop(); err != nil {
		t.logger.Error("failed to stop embedded Tor", slog.String("error", err.Error()))
	}
}
