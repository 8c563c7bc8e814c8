package banner

import (
	"fmt"

	"asynclogd/pkg/config"
)

const banner = `
 █████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗██╗      ██████╗  ██████╗ ██████╗
██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝██║     ██╔═══██╗██╔════╝ ██╔══██╗
███████║███████╗ ╚████╔╝ ██╔██╗ ██║██║     ██║     ██║   ██║██║  ███╗██║  ██║
██╔══██║╚════██║  ╚██╔╝  ██║╚██╗██║██║     ██║     ██║   ██║██║   ██║██║  ██║
██║  ██║███████║   ██║   ██║ ╚████║╚██████╗███████╗╚██████╔╝╚██████╔╝██████╔╝
╚═╝  ╚═╝╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝╚══════╝ ╚═════╝  ╚═════╝ ╚═════╝
`

// Print summarizes the effective configuration every cmd/logd startup
// resolved via pkg/config, so an operator can see at a glance where the
// engine, front-end, admin surface and retention scheduler are listening.
func Print(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	if cfg == nil {
		return
	}

	fmt.Print(banner)
	fmt.Println("== Config ======================================================")
	if version != "" {
		fmt.Printf("Version:        %s\n", version)
	}
	fmt.Printf("Config source:  %s\n", eff.Source)
	fmt.Printf("Log dir:        %s\n", cfg.Engine.LogDir)
	fmt.Printf("Index max items: %d\n", cfg.Engine.IndexMaxItems)
	fmt.Printf("Segment max bytes: %d\n", cfg.Engine.SegmentMaxBytes.Int64())
	fmt.Printf("Flush interval: %s\n", cfg.Engine.FlushInterval.Duration())
	fmt.Printf("Pool capacity:  %d (init %d bytes)\n", cfg.Engine.PoolCapacity, cfg.Engine.PoolBufInitialBytes.Int64())

	fmt.Println("\n== Listeners ===================================================")
	fmt.Printf("Frontend (TCP): %s\n", cfg.Frontend.Address)
	if cfg.Frontend.MaxRequestsPerSec > 0 {
		fmt.Printf("  rate limit:   %.1f req/s, burst %d\n", cfg.Frontend.MaxRequestsPerSec, cfg.Frontend.MaxRequestsBurst)
	} else {
		fmt.Println("  rate limit:   disabled")
	}
	fmt.Printf("Admin (HTTP):   %s  (/healthz, /metrics, /docs)\n", cfg.Admin.Address)

	fmt.Println("\n== Retention ===================================================")
	if cfg.Retention.Enabled {
		fmt.Printf("enabled, cron=%q, keep_segments=%d\n", cfg.Retention.Cron, cfg.Retention.KeepSegments)
	} else {
		fmt.Println("disabled")
	}

	fmt.Println()
}
