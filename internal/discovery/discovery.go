// Package discovery answers one question: given a subnet, which addresses
// are currently answering? The planner subtracts the result from its
// allocation pool. Callers treat the probe as a black box; the production
// implementation is an ICMP echo sweep.
package discovery

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/shingonati0n/xivomega/internal/logging"
)

// Prober reports the set of addresses currently answering on a subnet.
type Prober interface {
	Sweep(ctx context.Context, subnet string) (map[string]bool, error)
}

// PingProber sweeps a subnet with single ICMP echoes.
type PingProber struct {
	// Timeout bounds each individual probe.
	Timeout time.Duration

	// Workers bounds how many probes run at once.
	Workers int

	logger *logging.Logger
}

// NewPingProber returns a PingProber with production defaults.
func NewPingProber() *PingProber {
	return &PingProber{
		Timeout: 500 * time.Millisecond,
		Workers: 64,
		logger:  logging.WithComponent("discovery"),
	}
}

// Sweep probes every host address of subnet and returns the responders.
func (p *PingProber) Sweep(ctx context.Context, subnet string) (map[string]bool, error) {
	_, ipnet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", subnet, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("subnet %q is not IPv4", subnet)
	}
	size := 1 << (bits - ones)

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		alive = make(map[string]bool)
		wg    sync.WaitGroup
		sem   = make(chan struct{}, workers)
	)

	p.logger.Info("probing subnet for live hosts", "subnet", subnet)
	start := time.Now()

	base := binary.BigEndian.Uint32(ipnet.IP.To4())
	for i := 1; i < size-1; i++ {
		if ctx.Err() != nil {
			break
		}

		addr := make(net.IP, 4)
		binary.BigEndian.PutUint32(addr, base+uint32(i))
		target := addr.String()

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if p.probe(ctx, target) {
				mu.Lock()
				alive[target] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("subnet probe complete",
		"subnet", subnet, "alive", len(alive), "elapsed", time.Since(start).Round(time.Millisecond))
	return alive, nil
}

func (p *PingProber) probe(ctx context.Context, target string) bool {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return false
	}

	pinger.Count = 1
	pinger.Timeout = p.Timeout
	// Root is a hard precondition of the tool, so raw sockets are fine.
	pinger.SetPrivileged(true)

	if err := pinger.RunWithContext(ctx); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
